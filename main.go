package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"towing-contact/api/pkg/clients/email"
	"towing-contact/api/pkg/config"
	"towing-contact/api/services/contact"
	"towing-contact/api/services/storage"
	"towing-contact/api/services/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           "contact",
		Short:         "Contact form service for the towing and roadside assistance site",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./contact.yaml if present)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	load := func() (*config.Config, error) {
		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return nil, err
		}
		logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.SlogLevel(),
		})
		slog.SetDefault(slog.New(logHandler))
		return cfg, nil
	}

	root.AddCommand(newServeCmd(v, load), newSendCmd(v, load))
	return root
}

func newServeCmd(v *viper.Viper, load func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the contact form and its JSON API",
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return config.BindFlags(v, cmd.Flags(), map[string]string{
				"addr": "server.addr",
				"stub": "emailjs.stub",
			})
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().Bool("stub", false, "log submissions instead of calling EmailJS")
	return cmd
}

func newSendCmd(v *viper.Viper, load func() (*config.Config, error)) *cobra.Command {
	var fields contact.Fields
	var serviceType string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Submit one message through the configured relay and print the result label",
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return config.BindFlags(v, cmd.Flags(), map[string]string{"stub": "emailjs.stub"})
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			st, err := contact.ParseServiceType(serviceType)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			fields.ServiceType = st
			return send(cmd.Context(), cfg, fields, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&fields.Name, "name", "", "sender name")
	cmd.Flags().StringVar(&fields.Email, "email", "", "sender email")
	cmd.Flags().StringVar(&fields.Phone, "phone", "", "sender phone")
	cmd.Flags().StringVar(&serviceType, "service-type", "", "towing, roadside-assistance, vehicle-recovery or other")
	cmd.Flags().StringVar(&fields.Message, "message", "", "message text")
	cmd.Flags().Bool("stub", false, "log the submission instead of calling EmailJS")
	return cmd
}

func newEmailClient(cfg *config.Config) email.Client {
	if cfg.EmailJS.Stub {
		return email.NewStubClient()
	}
	return email.NewEmailJSClient(&http.Client{Timeout: cfg.EmailJS.Timeout}, cfg.EmailJS.URL, cfg.EmailJS.AccessToken)
}

func formOptions(cfg *config.Config) []contact.Option {
	return []contact.Option{
		contact.WithLabels(cfg.Form.ContactLabels()),
		contact.WithResetDelay(cfg.Form.ResetDelay),
	}
}

func send(ctx context.Context, cfg *config.Config, fields contact.Fields, out io.Writer) error {
	form, err := contact.NewForm(newEmailClient(cfg), cfg.EmailJS.Relay(), formOptions(cfg)...)
	if err != nil {
		return err
	}
	changes := make([]contact.Change, 0, len(contact.FieldNames))
	for _, name := range contact.FieldNames {
		value, _ := fields.Get(name)
		changes = append(changes, contact.Change{Field: name, Value: value})
	}
	if err := form.Apply(changes...); err != nil {
		return err
	}

	result, err := form.Submit(ctx)
	var verrs contact.ValidationErrors
	if errors.As(err, &verrs) {
		fmt.Fprintln(os.Stderr, verrs.Error())
		return err
	}
	fmt.Fprintln(out, result.Status.Label)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return err
}

// warnIncompleteRelay logs the relay identifiers that are missing. The form
// refuses to submit without them, the stub client included.
func warnIncompleteRelay(cfg *config.Config) []string {
	missing := cfg.MissingRelayIDs()
	if len(missing) > 0 {
		slog.Warn("EmailJS configuration incomplete, submissions will fail",
			"missing", missing,
			"stub", cfg.EmailJS.Stub,
		)
	}
	return missing
}

// originHosts reduces CORS origins to the host[:port] patterns the
// websocket handshake matches against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			hosts = append(hosts, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			slog.Warn("ignoring malformed allowed origin", "origin", o)
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}

func serve(ctx context.Context, cfg *config.Config) error {
	warnIncompleteRelay(cfg)

	forms, err := contact.NewFactory(newEmailClient(cfg), cfg.EmailJS.Relay(), formOptions(cfg)...)
	if err != nil {
		slog.Error("Failed to create form factory", "error", err)
		return err
	}

	store, err := storage.NewInstance(forms, cfg.Sessions.Storage())
	if err != nil {
		slog.Error("Failed to create session store", "error", err)
		return err
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go store.Run(sweepCtx)

	// setup router
	mainRouter := mux.NewRouter()

	contactService, err := web.NewService(store, web.Options{
		SecureCookies:  cfg.Server.SecureCookies,
		OriginPatterns: originHosts(cfg.Server.AllowedOrigins),
	})
	if err != nil {
		slog.Error("Failed to create contact service", "error", err)
		return err
	}

	contactService.LoadRoutes(mainRouter)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins(cfg.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID"}),
		handlers.AllowCredentials(),
	)(mainRouter)

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelError)),
	)(corsHandler)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: recovery,
	}

	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("Starting server", "addr", cfg.Server.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("Server error", "error", err)
		return err

	case sig := <-shutdown:
		slog.Info("Shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Could not stop server gracefully", "error", err)
			srv.Close()
		}
	}
	return nil
}
