package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	gokeyring "github.com/zalando/go-keyring"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/driftchat/drift/internal/client"
	"github.com/driftchat/drift/internal/database"
	"github.com/driftchat/drift/internal/keyring"
	"github.com/driftchat/drift/internal/logging"
	"github.com/driftchat/drift/internal/pipeline"
	"github.com/driftchat/drift/internal/store"
	"github.com/driftchat/drift/internal/themes"
	"github.com/driftchat/drift/internal/transport"
)

func main() {
	serverAddr := flag.String("server", "", "Server address (overrides config)")
	username := flag.String("user", "", "Username (overrides config)")
	themeName := flag.String("theme", "", "Theme name (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	logout := flag.Bool("logout", false, "Forget the saved session token and exit")
	flag.Parse()

	if err := run(*serverAddr, *username, *themeName, *debug, *logout); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run(serverAddr, username, themeName string, debug, logout bool) error {
	if logout {
		if err := keyring.DeleteToken(); err != nil && !errors.Is(err, gokeyring.ErrNotFound) {
			return fmt.Errorf("failed to clear token: %w", err)
		}
		fmt.Println("Session token cleared.")
		return nil
	}

	cfgMgr, err := client.NewConfigManager()
	if err != nil {
		return err
	}
	settings, err := cfgMgr.Load()
	if err != nil {
		return err
	}
	if serverAddr != "" {
		settings.Server.Address = serverAddr
	}
	if username != "" {
		settings.Server.Username = username
	}
	if themeName != "" {
		settings.UI.Theme = themeName
	}
	if debug {
		settings.Debug = true
	}

	logger, err := logging.New(filepath.Join(cfgMgr.ConfigDir(), "drift.log"), settings.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	theme, err := themes.GetTheme(settings.UI.Theme)
	if err != nil {
		logger.Warn("falling back to default theme", zap.Error(err))
		theme = themes.GetDefaultTheme()
	}

	token, err := obtainToken(settings)
	if err != nil {
		return err
	}

	db, err := database.New(filepath.Join(cfgMgr.ConfigDir(), "transfers.db"))
	if err != nil {
		return err
	}

	conn := transport.NewClient(settings.Server.Address, token, nil, logger.Named("transport"))
	// Startup connect failure is fatal; only established sessions reconnect.
	if err := conn.Connect(); err != nil {
		db.Close()
		return err
	}

	pipe := pipeline.NewManager(pipeline.Config{
		BaseURL:     settings.Server.Address,
		Token:       token,
		DownloadDir: settings.Files.DownloadDir,
		Workers:     settings.Files.Workers,
		Logger:      logger.Named("pipeline"),
	})

	app := client.NewApp(client.Options{
		Store:    store.New(),
		Conn:     conn,
		Pipeline: pipe,
		DB:       db,
		Config:   cfgMgr,
		Settings: settings,
		Theme:    theme,
		Logger:   logger,
	})

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("program error: %w", err)
	}
	return nil
}

// obtainToken returns the saved session token, logging in over HTTP when
// there is none.
func obtainToken(settings *client.Settings) (string, error) {
	token, err := keyring.GetToken()
	if err == nil && token != "" {
		return token, nil
	}
	if err != nil && !errors.Is(err, gokeyring.ErrNotFound) {
		return "", fmt.Errorf("keyring: %w", err)
	}

	if settings.Server.Username == "" {
		fmt.Print("Username: ")
		fmt.Scanln(&settings.Server.Username)
	}
	fmt.Print("Password: ")
	passBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	_, token, err = transport.Login(settings.Server.Address, settings.Server.Username, string(passBytes))
	if err != nil {
		return "", err
	}
	if err := keyring.SetToken(token); err != nil {
		// Non-fatal: the session still works, it just won't be remembered.
		fmt.Fprintf(os.Stderr, "warning: could not save token: %v\n", err)
	}
	return token, nil
}
