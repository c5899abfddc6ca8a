package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/nhle/attachdl/internal/api"
	"github.com/nhle/attachdl/internal/app"
	"github.com/nhle/attachdl/internal/credential"
	"github.com/nhle/attachdl/internal/model"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("attachdl", pflag.ContinueOnError)
	configPath := flags.String("config", model.DefaultConfigPath(), "path to the config file")
	flags.String("server", "", "download server base URL")
	flags.String("log-file", "", "write logs to this file")
	initConfig := flags.Bool("init-config", false, "write the default config file and exit")
	saveToken := flags.Bool("save-token", false, "read an API token from stdin, store it in the keyring and exit")
	clearToken := flags.Bool("clear-token", false, "remove the stored API token and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	switch {
	case *initConfig:
		if err := model.SaveConfig(*configPath, model.DefaultAppConfig()); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", *configPath)
		return nil
	case *saveToken:
		return storeToken(os.Stdin)
	case *clearToken:
		return credential.Delete(credential.TokenKey)
	}

	cfg, err := model.LoadConfig(*configPath, flags)
	if err != nil {
		return err
	}

	if cfg.Log.File != "" {
		f, err := tea.LogToFile(cfg.Log.File, "attachdl")
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	token, err := credential.LoadToken(cfg.Server.TokenEnv)
	if err != nil {
		log.Printf("no API token loaded: %v", err)
	}

	client := api.NewClient(cfg.Server.BaseURL, token, cfg.Server.Timeout())
	m := app.New(client, cfg)

	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if fm, ok := final.(app.Model); ok {
		fm.Close()
	}
	return err
}

// storeToken reads one line from r and saves it as the API token.
func storeToken(r io.Reader) error {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("reading token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return fmt.Errorf("reading token: empty input")
	}
	return credential.Set(credential.TokenKey, token)
}
