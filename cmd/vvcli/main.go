package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/victimvoice/cmd/vvcli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Login    commands.LoginCmd    `cmd:"" help:"Log in with a phone verification code"`
		Admin    commands.AdminCmd    `cmd:"" help:"Administrator commands"`
		Logout   commands.LogoutCmd   `cmd:"" help:"Clear a saved session"`
		Whoami   commands.WhoamiCmd   `cmd:"" help:"Show saved sessions"`
		Requests commands.RequestsCmd `cmd:"" help:"Work with support requests"`

		Debug    bool   `help:"Enable debug mode." env:"VV_DEBUG"`
		Config   string `help:"YAML or JSON config file." type:"path"`
		Server   string `help:"Backend URL, overrides the config file."`
		TokenDir string `help:"Directory holding saved sessions." type:"path"`
		Version  kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("vvcli"),
		kong.Description("VictimVoice support request client."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:      cli.Debug,
		Version:    version,
		ConfigFile: cli.Config,
		Server:     cli.Server,
		TokenDir:   cli.TokenDir,
	})
	cmd.FatalIfErrorf(err)
}
