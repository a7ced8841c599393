// Command keygen generates the certifying authority's root key pair and
// saves it to disk: a passphrase-sealed private key and an unencrypted
// public key, both PEM. Run once at deployment time, before the simulator.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/authority"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/config"
)

func main() {
	outDir := flag.String("out", "keys", "Directory for the generated key files")
	curveName := flag.String("curve", "P-256", "ECDSA curve: P-256, P-384 or P-521")
	name := flag.String("name", "ca", "Base name for the key files")
	flag.Parse()

	// .env is optional; the passphrase may come from the environment directly.
	_ = godotenv.Load()

	passphrase := os.Getenv(config.DefaultPassphraseEnv)
	if passphrase == "" {
		log.Fatalf("Root key passphrase not set: export %s first.", config.DefaultPassphraseEnv)
	}

	curve, err := config.ParseCurve(*curveName)
	if err != nil {
		log.Fatal(err)
	}

	if err := os.MkdirAll(*outDir, 0700); err != nil {
		log.Fatalf("Create output directory: %v", err)
	}

	key, err := authority.GenerateRootKey(curve)
	if err != nil {
		log.Fatal(err)
	}

	privPath := filepath.Join(*outDir, *name+"_pvt_key.pem")
	pubPath := filepath.Join(*outDir, *name+"_pub_key.pem")

	if err := authority.SavePrivateKey(privPath, key, passphrase); err != nil {
		log.Fatalf("Save private key: %v", err)
	}
	if err := authority.SavePublicKey(pubPath, &key.PublicKey); err != nil {
		log.Fatalf("Save public key: %v", err)
	}

	log.Printf("Saved sealed CA private key to %s", privPath)
	log.Printf("Saved CA public key to %s", pubPath)
}
