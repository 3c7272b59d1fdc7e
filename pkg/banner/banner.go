package banner

import (
	"fmt"
	"strings"

	"chatdb/pkg/config"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗██████╗ ██████╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔══██╗██╔══██╗
██║     ███████║███████║   ██║   ██║  ██║██████╔╝
██║     ██╔══██║██╔══██║   ██║   ██║  ██║██╔══██╗
╚██████╗██║  ██║██║  ██║   ██║   ██████╔╝██████╔╝
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚═════╝ ╚═════╝
`

// PrintWithEff prints the startup banner using the effective config so
// runtime context (listen address, db path, config sources) shows up
// in one place.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	dbPath := eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Server.DBPath
	}
	src := strings.Join(eff.Sources, ", ")
	if src == "" {
		src = "defaults"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config sources: %s\n", src)
	if eff.Config != nil && eff.Config.Retention.Enabled {
		fmt.Printf("Retention: enabled (cron %q, period %q)\n", eff.Config.Retention.Cron, eff.Config.Retention.Period)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/users    - Create a user (JSON: name)")
	fmt.Println("POST /v1/chats    - Create a chat (JSON: message_ids)")
	fmt.Println("POST /v1/messages - Add a message (JSON: body, role, sources, ts)")
	fmt.Println("GET  /v1/users?name=<name> - Look up a user by name")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/v1/users' -d '{\"name\": \"alice\"}'\n", addr)
	fmt.Printf("curl -X POST 'http://localhost%s/v1/chats/<id>/messages' -d '{\"body\": \"hi\", \"role\": \"user\"}'\n", addr)
	fmt.Println("\n== Production? =================================================")
	fmt.Println("Set a proper storage path (--db)")
	fmt.Println("Configure API keys under security.api_keys before exposing the port")
}
