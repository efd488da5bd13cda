package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/harrylevesque/photobooth/internal/auth"
	"github.com/harrylevesque/photobooth/internal/crypto"
)

func main() {
	out := flag.String("out", "", "also write the plain token to this file (refuses to overwrite)")
	flag.Parse()

	token, err := crypto.RandomHex(32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}
	hash, err := auth.HashToken(token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error hashing token: %v\n", err)
		os.Exit(1)
	}

	if *out != "" {
		if _, err := os.Stat(*out); err == nil {
			fmt.Fprintf(os.Stderr, "Error: %s already exists. Refusing to overwrite.\n", *out)
			os.Exit(1)
		}
		if err := os.WriteFile(*out, []byte(token+"\n"), 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *out, err)
			os.Exit(1)
		}
	}

	fmt.Printf("token:      %s\n", token)
	fmt.Printf("token_hash: %s\n", hash)
	fmt.Println("Set admin.token_hash (or PHOTOBOOTH_ADMIN_TOKEN_HASH) on the server and give the token to operators.")
}
