package frontend

import (
	"github.com/jghoshh/taskvibe/backend/config"
	"github.com/jghoshh/taskvibe/frontend/client"
	"github.com/jghoshh/taskvibe/frontend/cmd"
)

// RunFrontend starts the interactive shell against the server at cfg.ServerURL.
func RunFrontend(cfg *config.Config) {
	api := client.NewAPIClient(cfg.ServerURL, cfg.AuthTokenKey, cfg.RefreshTokenKey)
	cmd.NewShell(api).Run()
}
