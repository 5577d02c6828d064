package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"aide/internal/app"
	"aide/internal/assistant"
	"aide/internal/calendar"
	"aide/internal/proxy"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file>",
	Short: "Run speech-to-text on an audio file",
	Long: `Transcribe an audio file (ogg/opus, mp3, wav) with the configured speech
backend, exactly as the daemon does for voice messages.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		httpClient, err := proxy.NewHTTPClient(cfg.Proxy.Socks, cfg.Generation.Timeout)
		if err != nil {
			return err
		}

		tr, closeTr, err := app.NewTranscriber(cfg.Speech, httpClient, app.RetryConfig(cfg.Retry))
		if err != nil {
			return err
		}
		defer closeTr()

		text, err := tr.Transcribe(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models offered by the generation provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		httpClient, err := proxy.NewHTTPClient(cfg.Proxy.Socks, cfg.Generation.Timeout)
		if err != nil {
			return err
		}

		gen := app.NewGenerator(cfg.Generation, httpClient, app.RetryConfig(cfg.Retry))
		models, err := gen.ListModels(cmd.Context())
		if err != nil {
			return err
		}
		printModels(cmd.OutOrStdout(), models)
		return nil
	},
}

func printModels(w io.Writer, models []assistant.ModelInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tMETHODS")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\n", m.Name, strings.Join(m.Methods, ", "))
	}
	tw.Flush()
}

var calendarAuthCmd = &cobra.Command{
	Use:   "calendar-auth",
	Short: "Authorise Google Calendar access and store the token",
	Long: `Prints the Google consent URL for the OAuth client in calendar.credentials_file,
reads the authorisation code from stdin and stores the resulting token in
calendar.token_file for the daemon to use.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		oc, err := calendar.LoadOAuthConfig(cfg.Calendar.CredentialsFile)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Open this URL and grant access:\n\n%s\n\nAuthorisation code: ", calendar.AuthURL(oc))

		code, err := readCode(cmd.InOrStdin())
		if err != nil {
			return err
		}

		if err := calendar.Exchange(cmd.Context(), oc, code, cfg.Calendar.TokenFile); err != nil {
			return err
		}
		fmt.Fprintf(out, "Token saved to %s\n", cfg.Calendar.TokenFile)
		return nil
	},
}

func readCode(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return "", fmt.Errorf("no authorisation code given")
	}
	return code, nil
}

func init() {
	rootCmd.AddCommand(transcribeCmd, modelsCmd, calendarAuthCmd)
}
