// Command federationd runs one Federation Entity: it serves the well-known configuration and
// fetch endpoints of the Entity State Model, plus the management endpoints used to register
// subordinates and issue or receive Trust Marks.
//
// Run with `federationd -config federation.yaml` or, for a quick single-entity trust anchor with
// no subordinates, `federationd -name ta` (the identifier is derived from name; the listen address
// is :8000 unless -listen is given, and does not depend on name).
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/dagregi/oidf-federation/federation"
	"github.com/dagregi/oidf-federation/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML federation entity config")
	name := flag.String("name", "", "entity name, used to derive the identifier if -config is not given")
	listenAddr := flag.String("listen", "", "override the listen address")
	flag.Parse()

	var config Config
	if *configPath != "" {
		loaded, err := loadConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config %s: %s", *configPath, err)
		}
		config = loaded
	} else if *name != "" {
		config.Entity.Name = *name
		config.Entity.Identifier = fmt.Sprintf("https://%s.example.com", *name)
		config.ListenAddr = ":8000"
	} else {
		log.Fatal("either -config or -name is required")
	}

	if *listenAddr != "" {
		config.ListenAddr = *listenAddr
	}
	if config.ListenAddr == "" {
		config.ListenAddr = ":8000"
	}

	identifier, err := federation.NewIdentifier(config.Entity.Identifier)
	if err != nil {
		log.Fatalf("invalid entity identifier %q: %s", config.Entity.Identifier, err)
	}

	keys := federation.NewKeyManager()
	if err := keys.Initialize(config.Entity.Name); err != nil {
		slog.Error("failed to initialize signing key", "error", err)
		os.Exit(1)
	}

	ctx := federation.NewEntityContext(identifier, keys, federation.SystemClock{})

	for _, raw := range config.TrustAnchors {
		hint, err := federation.NewIdentifier(raw)
		if err != nil {
			log.Fatalf("invalid trust anchor %q: %s", raw, err)
		}
		ctx.AddAuthorityHint(hint)
	}

	signer := federation.NewSigner(keys)
	issuer := federation.NewTrustMarkIssuer(ctx, signer)

	srv := server.New(ctx, signer, issuer, identifier.String(), config.Entity.Name)

	slog.Info("serving federation entity", "entity_id", identifier.String(), "listen_addr", config.ListenAddr)
	if err := http.ListenAndServe(config.ListenAddr, srv.Handler()); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
