// Command akatsuki-seal encrypts a secret with APP_ENCRYPT_KEY so it can be
// stored in the environment as enc:<ciphertext>.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"akatsuki/api/internal/config"
	"akatsuki/api/internal/infrastructure/crypto"
	"akatsuki/api/internal/logging"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: akatsuki-seal <plaintext | ->")
		os.Exit(2)
	}
	_ = godotenv.Load()

	plaintext := os.Args[1]
	if plaintext == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ read stdin: %v\n", err)
			os.Exit(1)
		}
		plaintext = strings.TrimRight(string(b), "\r\n")
	}

	logger := logging.NewLogger(os.Stderr, slog.LevelError)
	svc := crypto.NewAESCryptoService(config.EncryptKey, logger)

	sealed, err := svc.Encrypt(context.Background(), plaintext)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ seal failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(config.SealedPrefix + sealed)
}
