// inspect dumps the raw records of a chatdb database. Useful when
// debugging a store that fails to load.
package main

import (
	"flag"
	"fmt"
	"os"

	"chatdb/pkg/store"
)

func main() {
	var (
		path   string
		prefix string
		keys   bool
	)
	flag.StringVar(&path, "path", "", "database path")
	flag.StringVar(&prefix, "prefix", "", "key prefix filter (user:, chat:, msg:)")
	flag.BoolVar(&keys, "keys", false, "print keys only")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stderr, "--path required")
		os.Exit(2)
	}

	kv, err := store.OpenPebble(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open failed: %v\n", err)
		os.Exit(1)
	}
	defer kv.Close()

	var count int
	err = kv.Scan(prefix, func(key string, value []byte) error {
		count++
		if keys {
			fmt.Println(key)
			return nil
		}
		fmt.Printf("%s\t%s\n", key, value)
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "%d records\n", count)
}
