package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/httpstubs/internal/errx"
)

var matchCmd = &cobra.Command{
	Use:   "match <METHOD> <URL>",
	Short: "Show which stub would answer a request",
	Args:  cobra.ExactArgs(2),
	RunE:  runMatch,
}

func init() {
	matchCmd.Flags().StringArrayP("header", "H", nil, "Request header 'Name: value' (repeatable)")
	matchCmd.Flags().StringP("data", "d", "", "Request body")

	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry(newLogger(cmd))
	if err != nil {
		return err
	}
	headers, _ := cmd.Flags().GetStringArray("header")
	data, _ := cmd.Flags().GetString("data")

	req, err := buildRequest(cmd.Context(), strings.ToUpper(args[0]), args[1], data, headers)
	if err != nil {
		return err
	}

	info, ok, err := reg.FirstMatch(req)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "no match")
		return errx.With(ErrNoMatch, ": %s %s", req.Method, req.URL)
	}
	name := info.Name
	if name == "" {
		name = "-"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", info.ID, name)
	return nil
}

func parseHeaders(raw []string) (http.Header, error) {
	h := make(http.Header, len(raw))
	for _, line := range raw {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errx.With(ErrBadHeader, ": %q", line)
		}
		h.Add(name, strings.TrimSpace(value))
	}
	return h, nil
}
