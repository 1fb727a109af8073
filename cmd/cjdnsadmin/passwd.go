package main

import (
	"crypto/rand"
	"fmt"

	"github.com/spf13/cobra"
)

// passwdAlphabet is the base32 alphabet daemon-generated credentials use;
// sticking to it keeps passwords shell- and config-file-safe.
const passwdAlphabet = "0123456789bcdfghjklmnpqrstuvwxyz"

func passwdCmd() *cobra.Command {
	var length int

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Generate a random admin password",
		Long: `Generate a cryptographically random base32 password suitable for the
daemon's admin socket configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if length < 8 {
				return fmt.Errorf("refusing to generate a password shorter than 8 characters")
			}
			pw, err := randomPassword(length)
			if err != nil {
				return err
			}
			fmt.Println(pw)
			return nil
		},
	}
	cmd.Flags().IntVar(&length, "len", 32, "password length")
	return cmd
}

func randomPassword(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = passwdAlphabet[int(b)&31]
	}
	return string(buf), nil
}
