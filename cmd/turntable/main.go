package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/cjeanneret/turntable/internal/config"
	"github.com/cjeanneret/turntable/internal/debug"
	"github.com/cjeanneret/turntable/internal/hw/turntable"
	"github.com/cjeanneret/turntable/internal/metrics"
	"github.com/cjeanneret/turntable/internal/panel"
	"github.com/cjeanneret/turntable/internal/render"
	"github.com/cjeanneret/turntable/internal/simulator"
	"github.com/cjeanneret/turntable/internal/validate"
	"github.com/cjeanneret/turntable/internal/web"
)

// overrides holds the CLI values that replace config entries.
// Zero values mean "use config".
type overrides struct {
	BaseURL        string
	PollIntervalMs int
	Simulate       bool
	WebPort        int
}

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port (default: config web.port, 0 = headless)")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	baseURL := flag.String("base_url", "", "override controller base URL, e.g. http://192.168.1.110:8000")
	pollIntervalMs := flag.Int("poll_interval_ms", 0, "override poll interval in ms (100-60000)")
	simulate := flag.Bool("simulate", false, "poll an in-process simulated controller instead of base_url")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Validate CLI overrides (only non-zero values are applied; zero means "use config default")
	if err := validateCLIOverrides(*baseURL, *pollIntervalMs); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, overrides{
		BaseURL:        *baseURL,
		PollIntervalMs: *pollIntervalMs,
		Simulate:       *simulate,
		WebPort:        webPort.port(),
	})

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel, cfg.Defaults.LogFormat)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("turntable: %v", err)
	}
}

// run starts the panel and blocks until ctx is done.
func run(ctx context.Context, cfg *config.Config) error {
	naming, err := turntable.ParseFieldNaming(cfg.Controller.StatusFields)
	if err != nil {
		return err
	}

	baseURL := cfg.Controller.BaseURL
	if cfg.Defaults.Simulate {
		debug.Step(1, "Starting simulated controller")
		url, stop, err := startSimulator(simulatorNaming(naming))
		if err != nil {
			return fmt.Errorf("start simulator: %w", err)
		}
		defer stop()
		baseURL = url
	}
	debug.Value("Controller", baseURL)
	debug.Value("Status fields", naming)

	debug.Step(2, "Creating controller client")
	client := turntable.NewClient(baseURL,
		turntable.WithTimeout(cfg.Timeout()),
		turntable.WithFieldNaming(naming),
	)

	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		rec = metrics.New()
	}

	display, err := displayOptions(cfg)
	if err != nil {
		return err
	}
	debug.PrintStruct("Display", cfg.Display)

	debug.Step(3, "Starting panel")
	p := panel.New(client, panel.Config{
		Interval: cfg.PollInterval(),
		Display:  display,
		Metrics:  rec,
	})
	defer p.Close()

	// Headless mode logs every reading, the first poll's included.
	var updates <-chan panel.Snapshot
	if cfg.Web.Port == 0 {
		var unsub func()
		updates, unsub = p.Subscribe()
		defer unsub()
	}

	if err := p.Start(ctx); err != nil {
		return err
	}

	if cfg.Web.Port > 0 {
		webAddr := fmt.Sprintf(":%d", cfg.Web.Port)
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		var opts []web.ServerOption
		if rec != nil {
			opts = append(opts, web.WithMetrics(rec, cfg.Metrics.Path))
		}
		srv, err := web.NewServer(webAddr, p, broadcaster, formDefaults(cfg), opts...)
		if err != nil {
			return fmt.Errorf("web server: %w", err)
		}
		return srv.Run(ctx)
	}

	debug.Info("running headless, polling every %s", p.Interval())
	return runHeadless(ctx, updates)
}

// runHeadless logs each applied reading until ctx is done.
func runHeadless(ctx context.Context, updates <-chan panel.Snapshot) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-updates:
			if !ok {
				return nil
			}
			debug.Logger().Info().
				Uint64("seq", s.Seq).
				Float64("horizontal", s.Angles.Horizontal).
				Float64("vertical", s.Angles.Vertical).
				Msg(render.Caption("Horizontal", s.Angles.Horizontal) + " " + render.Caption("Vertical", s.Angles.Vertical))
		}
	}
}

// startSimulator serves a simulated controller on a loopback port and
// returns its base URL and a function stopping it.
func startSimulator(naming turntable.FieldNaming) (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{Handler: simulator.New(simulator.WithFieldNaming(naming)).Handler()}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debug.Error(fmt.Errorf("simulator: %w", err))
		}
	}()
	return "http://" + ln.Addr().String(), func() { srv.Close() }, nil
}

// simulatorNaming is the key naming the simulator serves for a client naming.
func simulatorNaming(n turntable.FieldNaming) turntable.FieldNaming {
	if n == turntable.NamingAuto {
		return turntable.NamingSuffixed
	}
	return n
}

// displayOptions builds the per-axis widget options from the display config.
func displayOptions(cfg *config.Config) (map[turntable.Axis]render.Options, error) {
	variant, err := render.ParseVariant(cfg.Display.Variant)
	if err != nil {
		return nil, err
	}
	colors := render.Colors{Track: cfg.Display.Colors.Track, Progress: cfg.Display.Colors.Progress}
	axis := func(d config.AxisDisplay) render.Options {
		return render.Options{
			Variant: variant,
			Size:    cfg.Display.Size,
			Label:   d.Label,
			Letter:  d.Letter,
			Colors:  colors,
		}
	}
	return map[turntable.Axis]render.Options{
		turntable.Horizontal: axis(cfg.Display.Horizontal),
		turntable.Vertical:   axis(cfg.Display.Vertical),
	}, nil
}

// formDefaults is what the page starts with.
func formDefaults(cfg *config.Config) web.FormConfig {
	return web.FormConfig{
		Variant:        cfg.Display.Variant,
		Size:           cfg.Display.Size,
		PollIntervalMs: int64(cfg.Poll.IntervalMs),
		Horizontal:     web.AxisForm{Label: cfg.Display.Horizontal.Label, Letter: cfg.Display.Horizontal.Letter},
		Vertical:       web.AxisForm{Label: cfg.Display.Vertical.Label, Letter: cfg.Display.Vertical.Letter},
	}
}

// validateCLIOverrides checks that non-zero CLI overrides are within valid ranges.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(baseURL string, pollIntervalMs int) error {
	if baseURL != "" {
		if err := validate.Var("base_url", baseURL, "http_url"); err != nil {
			return fmt.Errorf("base_url must be an absolute http(s) URL, got %q", baseURL)
		}
	}
	if pollIntervalMs != 0 {
		if pollIntervalMs < 100 || pollIntervalMs > 60000 {
			return fmt.Errorf("poll_interval_ms must be between 100 and 60000, got %d", pollIntervalMs)
		}
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
func applyOverrides(cfg *config.Config, o overrides) {
	if o.BaseURL != "" {
		cfg.Controller.BaseURL = strings.TrimRight(o.BaseURL, "/")
	}
	if o.PollIntervalMs > 0 {
		cfg.Poll.IntervalMs = o.PollIntervalMs
	}
	if o.Simulate {
		cfg.Defaults.Simulate = true
	}
	if o.WebPort > 0 {
		cfg.Web.Port = o.WebPort
	}
}

// webPortFlag implements flag.Value for -web: unset = config port, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
