package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/jeffersonwarrior/asynchttp/internal/config"
	ahttp "github.com/jeffersonwarrior/asynchttp/internal/http"
	"github.com/jeffersonwarrior/asynchttp/internal/identity"
	"github.com/jeffersonwarrior/asynchttp/internal/logging"
	"github.com/jeffersonwarrior/asynchttp/internal/transport"
	"github.com/jeffersonwarrior/asynchttp/internal/version"
)

// pumpInterval is how often the fetch loop drives the manager.
const pumpInterval = 5 * time.Millisecond

type fetchOptions struct {
	method     string
	headers    []string
	data       string
	dataFile   string
	sets       []string
	user       string
	selectPath string
	include    bool
	verbose    bool
	maxRetries int
}

// fetchResult is a copy of a completed request, taken in its callback.
type fetchResult struct {
	url     string
	status  int
	headers []ahttp.Header
	body    []byte
	retries int
	err     error
}

func (cli *CLI) newFetchCommand() *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch <url> [url...]",
		Short: "Send one or more requests concurrently and print the responses",
		Example: `  asynchttp fetch https://example.com
  asynchttp fetch --user alice -H 'Accept: application/json' https://api.example.com/me
  asynchttp fetch -X PUT --set name=bob --set age=42 https://api.example.com/users/7
  asynchttp fetch --select data.items.#.id https://api.example.com/items`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("method") && (opts.data != "" || opts.dataFile != "" || len(opts.sets) > 0) {
				opts.method = "POST"
			}

			cfg, err := cli.loadConfig()
			if err != nil {
				return err
			}
			return cli.runFetch(cmd.Context(), cfg, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.method, "method", "X", "GET", "Request method (GET, POST, PUT)")
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, "Request header 'Name: value' (repeatable)")
	flags.StringVarP(&opts.data, "data", "d", "", "Request body, sent verbatim")
	flags.StringVar(&opts.dataFile, "data-file", "", "Read the request body from a file")
	flags.StringArrayVar(&opts.sets, "set", nil, "Set a JSON body field 'path=value' (repeatable)")
	flags.StringVarP(&opts.user, "user", "u", "", "Authorize requests as this user ID")
	flags.StringVar(&opts.selectPath, "select", "", "Print only this JSON path of the response body")
	flags.BoolVarP(&opts.include, "include", "i", false, "Print the status and response headers")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log request and response headers")
	flags.IntVar(&opts.maxRetries, "max-retries", 0, "Retries after a 401, -1 disables (default from config)")
	cmd.MarkFlagsMutuallyExclusive("data", "data-file")

	return cmd
}

func (cli *CLI) runFetch(ctx context.Context, cfg *config.Config, opts *fetchOptions, urls []string) error {
	verb, err := ahttp.ParseVerb(opts.method)
	if err != nil {
		return err
	}
	headers, err := parseHeaders(opts.headers)
	if err != nil {
		return err
	}
	body, literal, err := buildBody(opts.data, opts.dataFile, opts.sets)
	if err != nil {
		return err
	}
	if len(opts.sets) > 0 {
		headers = withDefaultHeader(headers, "Content-Type", "application/json")
	}
	headers = withDefaultHeader(headers, "User-Agent", version.UserAgent())

	if opts.verbose {
		cfg.Manager.Verbose = true
		cfg.Log.Level = "debug"
	}
	if opts.maxRetries != 0 {
		cfg.Manager.MaxRetries = opts.maxRetries
	}

	logger, logCloser, err := logging.New(cfg.LoggingOptions(), cli.errOut)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	var (
		provider identity.Provider
		user     *identity.User
	)
	if opts.user != "" {
		issuer, closer, err := newIssuer(cfg)
		if err != nil {
			return err
		}
		defer closer.Close()
		provider = issuer
		user = &identity.User{ID: opts.user, Name: opts.user}
	}

	manager := ahttp.NewManager(transport.NewNetTransport(cfg.TransportOptions()), provider, ahttp.Config{
		MaxRetries: cfg.Manager.MaxRetries,
		Verbose:    cfg.Manager.Verbose,
		Logger:     &logger,
	})
	if err := manager.Initialize(); err != nil {
		return err
	}
	defer manager.CleanUp()

	results := make([]fetchResult, len(urls))
	for i, url := range urls {
		results[i].url = url
		res := &results[i]
		onCompleted := func(rc *ahttp.RequestContext) {
			res.status = rc.StatusCode()
			res.headers = rc.ResponseHeaders()
			res.body = append([]byte(nil), rc.ResponseBody()...)
			res.retries = rc.NumRetries()
			res.err = rc.Err()
		}

		if literal {
			err = manager.SubmitString(user, verb, url, headers, string(body), onCompleted)
		} else {
			err = manager.Submit(user, verb, url, headers, body, onCompleted)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", url, err)
		}
	}

	if err := drive(ctx, manager, pumpInterval); err != nil {
		return err
	}
	return cli.report(logger, results, opts)
}

// drive pumps the manager until every request has completed or ctx is done.
func drive(ctx context.Context, m *ahttp.Manager, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for m.Pending() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("interrupted with %d request(s) pending: %w", m.Pending(), ctx.Err())
		case <-ticker.C:
			m.Pump()
		}
	}
	return nil
}

func (cli *CLI) report(logger zerolog.Logger, results []fetchResult, opts *fetchOptions) error {
	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.url, r.err))
			continue
		}
		if r.retries > 0 {
			logger.Info().Str("url", r.url).Int("retries", r.retries).Msg("request needed a refreshed token")
		}
		if err := writeResult(cli.out, r, opts.include, opts.selectPath); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.url, err))
		}
	}
	return errors.Join(errs...)
}

// writeResult prints one response: optionally the status and headers, then
// the body or the selected JSON value.
func writeResult(w io.Writer, r fetchResult, include bool, selectPath string) error {
	if include {
		fmt.Fprintf(w, "HTTP %d\n", r.status)
		for _, h := range r.headers {
			fmt.Fprintln(w, h.String())
		}
		fmt.Fprintln(w)
	}

	if selectPath == "" {
		_, err := w.Write(r.body)
		return err
	}

	if !gjson.ValidBytes(r.body) {
		return errors.New("response body is not JSON")
	}
	value := gjson.GetBytes(r.body, selectPath)
	if !value.Exists() {
		return fmt.Errorf("path %q not found in response", selectPath)
	}
	_, err := fmt.Fprintln(w, value.String())
	return err
}

// parseHeaders parses "Name: value" flag values.
func parseHeaders(raw []string) ([]ahttp.Header, error) {
	headers := make([]ahttp.Header, 0, len(raw))
	for _, line := range raw {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected 'Name: value'", line)
		}
		headers = append(headers, ahttp.Header{Name: name, Value: strings.TrimSpace(value)})
	}
	return headers, nil
}

func withDefaultHeader(headers []ahttp.Header, name, value string) []ahttp.Header {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return headers
		}
	}
	return append(headers, ahttp.Header{Name: name, Value: value})
}

// buildBody assembles the request body. literal reports that the body came
// from --data alone and should be sent verbatim.
//
// Each --set path=value is applied to the body as JSON with sjson, starting
// from an empty object when no other body was given. A value that parses as
// JSON is set raw, anything else as a string.
func buildBody(data, dataFile string, sets []string) (body []byte, literal bool, err error) {
	switch {
	case dataFile != "":
		body, err = os.ReadFile(dataFile)
		if err != nil {
			return nil, false, fmt.Errorf("read body: %w", err)
		}
	case data != "":
		body = []byte(data)
		literal = len(sets) == 0
	}

	if len(sets) == 0 {
		return body, literal, nil
	}

	if len(body) == 0 {
		body = []byte(`{}`)
	}
	for _, kv := range sets {
		path, value, ok := strings.Cut(kv, "=")
		if !ok || path == "" {
			return nil, false, fmt.Errorf("invalid --set %q, expected 'path=value'", kv)
		}
		if gjson.Valid(value) {
			body, err = sjson.SetRawBytes(body, path, []byte(value))
		} else {
			body, err = sjson.SetBytes(body, path, value)
		}
		if err != nil {
			return nil, false, fmt.Errorf("set %s: %w", path, err)
		}
	}
	return body, false, nil
}

// newIssuer builds the local token issuer, backed by the SQLite token cache
// when a store path is configured.
func newIssuer(cfg *config.Config) (*identity.Issuer, io.Closer, error) {
	if cfg.Identity.SigningKey == "" {
		return nil, nil, errors.New("identity.signing_key (or ASYNCHTTP_SIGNING_KEY) is required to act as a user")
	}

	var (
		store  identity.TokenStore = identity.NewMemoryStore()
		closer io.Closer           = nopCloser{}
	)
	if cfg.Identity.StorePath != "" {
		sqlStore, err := identity.OpenSQLiteStore(cfg.Identity.StorePath)
		if err != nil {
			return nil, nil, err
		}
		store, closer = sqlStore, sqlStore
	}

	issuer, err := identity.NewIssuer(cfg.IssuerOptions(store))
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return issuer, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
