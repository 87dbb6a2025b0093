package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/httpstubs/internal/errx"
	"github.com/jingkaihe/httpstubs/pkg/logging"
	"github.com/jingkaihe/httpstubs/pkg/stub"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <URL>",
	Short: "Perform a request against the stubs and print the response",
	Long: `fetch sends one request through the stub transport, with simulated
timing, and prints the status line, headers and body. Unmatched requests
fail; nothing reaches the network.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringP("method", "X", http.MethodGet, "Request method")
	fetchCmd.Flags().StringP("data", "d", "", "Request body")
	fetchCmd.Flags().StringArrayP("header", "H", nil, "Request header 'Name: value' (repeatable)")
	fetchCmd.Flags().Duration("timeout", 0, "Give up after this long (0 waits for the full simulated response)")
	fetchCmd.Flags().Bool("no-redirect", false, "Print redirect responses instead of following them")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	reg, err := loadRegistry(logger)
	if err != nil {
		return err
	}

	method, _ := cmd.Flags().GetString("method")
	data, _ := cmd.Flags().GetString("data")
	headers, _ := cmd.Flags().GetStringArray("header")
	noRedirect, _ := cmd.Flags().GetBool("no-redirect")

	emitter, err := eventEmitter(logger)
	if err != nil {
		return err
	}
	if emitter != nil {
		defer emitter.Close()
		logging.Observe(reg, emitter)
	}

	ctx, cancel := requestContext(cmd.Context(), viper.GetDuration("fetch.timeout"))
	defer cancel()
	ctx, stopSignals := contextWithSignal(ctx)
	defer stopSignals()

	req, err := buildRequest(ctx, strings.ToUpper(method), args[0], data, headers)
	if err != nil {
		return err
	}

	client := &http.Client{Transport: stub.NewTransport(reg, nil)}
	if noRedirect {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return errx.Wrap(ErrFetch, err)
	}
	defer resp.Body.Close()

	out := cmd.OutOrStdout()
	statusColor(resp.StatusCode).Fprintf(out, "%s %s\n", resp.Proto, resp.Status)
	writeHeaders(out, resp.Header)
	fmt.Fprintln(out)
	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return errx.Wrap(ErrFetch, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "\n%d bytes in %s\n", n, time.Since(start).Round(time.Millisecond))
	return nil
}

func buildRequest(ctx context.Context, method, url, data string, rawHeaders []string) (*http.Request, error) {
	var body io.Reader
	if data != "" {
		body = strings.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errx.Wrap(ErrBuildRequest, err)
	}
	h, err := parseHeaders(rawHeaders)
	if err != nil {
		return nil, err
	}
	for k, v := range h {
		req.Header[k] = v
	}
	return req, nil
}

func statusColor(code int) *color.Color {
	switch {
	case code >= 500:
		return color.New(color.FgRed, color.Bold)
	case code >= 400:
		return color.New(color.FgRed)
	case code >= 300:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

func writeHeaders(w io.Writer, h http.Header) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		for _, v := range h[k] {
			fmt.Fprintf(w, "%s: %s\n", k, v)
		}
	}
}
