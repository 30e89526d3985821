package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goodmartian/beacon/internal/config"
	"github.com/goodmartian/beacon/internal/identity"
	"github.com/goodmartian/beacon/internal/mesh"
	"github.com/goodmartian/beacon/internal/metrics"
	"github.com/goodmartian/beacon/internal/relay"
	"github.com/goodmartian/beacon/internal/transport"
)

func defaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".beacon")
}

var rootCmd = &cobra.Command{
	Use:   "beacon",
	Short: "Off-grid mesh message relay",
	Long: `Beacon — disaster-response message relay over a peer-to-peer mesh.

No infrastructure. No coordinator. Every device floods what it hears to
every neighbour; time-to-live and a dedup ledger bound the flood. An SOS
keeps moving as long as any chain of devices is in range of each other.`,
}

// ─── init ────────────────────────────────────────────────────────────────────

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create this device's identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data")
		name, _ := cmd.Flags().GetString("name")

		if err := os.MkdirAll(dataDir, 0700); err != nil {
			return err
		}
		store, err := identity.Open(dataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := store.LoadOrCreate(name)
		if err != nil {
			return err
		}
		fmt.Printf("Device ID : %s\n", id.DeviceID)
		if id.Name != "" {
			fmt.Printf("Name      : %s\n", id.Name)
		}
		return nil
	},
}

// ─── run ─────────────────────────────────────────────────────────────────────

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the mesh relay daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return err
		}
		store, err := identity.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		name, _ := cmd.Flags().GetString("name")
		id, err := store.LoadOrCreate(name)
		if err != nil {
			return err
		}

		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		met := metrics.New()
		tr := transport.NewTCP(cfg.Listen, logger.Named("transport"))

		eng, err := relay.New(relay.Config{
			Self:       id.DeviceID,
			SelfName:   id.Name,
			Transport:  tr,
			Window:     cfg.DedupWindow(),
			HopBudgets: cfg.HopBudgets(),
			Logger:     logger.Named("relay"),
			Metrics:    met,
		})
		if err != nil {
			return err
		}
		if err := eng.Start(); err != nil {
			return err
		}
		defer eng.Stop()

		for _, addr := range cfg.Bootstrap {
			if err := tr.Connect(addr); err != nil {
				logger.Warn("bootstrap peer unreachable", zap.String("peer", addr), zap.Error(err))
			}
		}

		go serveMetrics(cfg.MetricsListen, met, logger)
		go watchPeers(tr, logger)
		go printMessages(eng, id.DeviceID)
		go composeLoop(eng)

		logger.Info("beacon running",
			zap.String("device", id.DeviceID.String()),
			zap.String("listen", cfg.Listen))
		fmt.Println("Type a message to broadcast it, or /help for commands.")

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		return nil
	},
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}
	if v, _ := cmd.Flags().GetString("data"); cmd.Flags().Changed("data") {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("listen"); cmd.Flags().Changed("listen") {
		cfg.Listen = v
	}
	if v, _ := cmd.Flags().GetStringSlice("peers"); cmd.Flags().Changed("peers") {
		cfg.Bootstrap = v
	}
	return cfg, nil
}

func serveMetrics(addr string, met *metrics.Metrics, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", met.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics endpoint failed", zap.Error(err))
	}
}

func watchPeers(tr transport.Transport, logger *zap.Logger) {
	for ev := range tr.Events() {
		if ev.Connected {
			logger.Info("peer connected", zap.String("peer", ev.Addr), zap.Int("peers", ev.Peers))
		} else {
			logger.Info("peer lost", zap.String("peer", ev.Addr), zap.Int("peers", ev.Peers))
		}
	}
}

func printMessages(eng *relay.Engine, self mesh.DeviceID) {
	msgs, cancel := eng.SubscribeAll()
	defer cancel()
	for m := range msgs {
		from := m.SenderName
		if from == "" {
			from = m.SenderID.String()[:8]
		}
		if m.SenderID == self {
			from += " (you)"
		}
		switch p := m.Payload.(type) {
		case mesh.SOSPayload:
			fmt.Printf("*** SOS from %s at %.5f,%.5f %s\n", from, p.Lat, p.Lon, p.Note)
		case mesh.MedicalPayload:
			fmt.Printf("[medical] %s: %s %s\n", from, p.Status, p.Detail)
		case mesh.TextPayload:
			fmt.Printf("[%s] %s\n", from, p.Text)
		case mesh.LocationPayload:
			fmt.Printf("[location] %s at %.5f,%.5f\n", from, p.Lat, p.Lon)
		case mesh.BatteryPayload:
			fmt.Printf("[battery] %s at %d%%\n", from, p.Percent)
		case mesh.PingPayload:
			fmt.Printf("[ping] %s\n", from)
		case mesh.HazardPayload:
			fmt.Printf("[hazard] %s: %s severity %d at %.5f,%.5f\n", from, p.Category, p.Severity, p.Lat, p.Lon)
		}
	}
}

func composeLoop(eng *relay.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := dispatch(eng, line); err != nil {
			fmt.Printf("! %v\n", err)
		}
	}
}

func dispatch(eng *relay.Engine, line string) error {
	if !strings.HasPrefix(line, "/") {
		_, err := eng.SendText(line)
		return err
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "/help":
		fmt.Println(`  /sos <lat> <lon> [note]            broadcast an SOS
  /loc <lat> <lon>                   broadcast your position
  /med <status> [detail]             status: stable|injured|critical|trapped
  /batt <percent>                    broadcast battery level
  /ping                              broadcast a liveness probe
  /hazard <category> <sev> <lat> <lon>
  <text>                             broadcast a chat message`)
		return nil
	case "/sos":
		if len(fields) < 3 {
			return fmt.Errorf("usage: /sos <lat> <lon> [note]")
		}
		lat, lon, err := parseCoords(fields[1], fields[2])
		if err != nil {
			return err
		}
		_, err = eng.SendSOS(lat, lon, strings.Join(fields[3:], " "))
		return err
	case "/loc":
		if len(fields) != 3 {
			return fmt.Errorf("usage: /loc <lat> <lon>")
		}
		lat, lon, err := parseCoords(fields[1], fields[2])
		if err != nil {
			return err
		}
		_, err = eng.SendLocation(lat, lon)
		return err
	case "/med":
		if len(fields) < 2 {
			return fmt.Errorf("usage: /med <status> [detail]")
		}
		status, ok := mesh.MedicalStatusFromString(fields[1])
		if !ok {
			return fmt.Errorf("unknown status %q", fields[1])
		}
		_, err := eng.SendMedical(status, strings.Join(fields[2:], " "))
		return err
	case "/batt":
		if len(fields) != 2 {
			return fmt.Errorf("usage: /batt <percent>")
		}
		pct, err := strconv.ParseUint(fields[1], 10, 8)
		if err != nil {
			return fmt.Errorf("bad percent %q", fields[1])
		}
		_, err = eng.SendBattery(uint8(pct))
		return err
	case "/ping":
		_, err := eng.SendPing()
		return err
	case "/hazard":
		if len(fields) != 5 {
			return fmt.Errorf("usage: /hazard <category> <severity> <lat> <lon>")
		}
		sev, err := strconv.ParseUint(fields[2], 10, 8)
		if err != nil {
			return fmt.Errorf("bad severity %q", fields[2])
		}
		lat, lon, err := parseCoords(fields[3], fields[4])
		if err != nil {
			return err
		}
		_, err = eng.SendHazard(fields[1], uint8(sev), lat, lon)
		return err
	}
	return fmt.Errorf("unknown command %s", fields[0])
}

func parseCoords(latStr, lonStr string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad latitude %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad longitude %q", lonStr)
	}
	return lat, lon, nil
}

// ─── status ──────────────────────────────────────────────────────────────────

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show this device's identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data")
		store, err := identity.Open(dataDir)
		if err != nil {
			fmt.Println("No identity found. Run 'beacon init' to create one.")
			return nil
		}
		defer store.Close()

		id, err := store.Load()
		if err != nil {
			fmt.Println("No identity found. Run 'beacon init' to create one.")
			return nil
		}
		fmt.Printf("Device ID : %s\n", id.DeviceID)
		fmt.Printf("Name      : %s\n", id.Name)
		fmt.Printf("Created   : %s\n", id.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		return nil
	},
}

func init() {
	dd := defaultDataDir()

	for _, cmd := range []*cobra.Command{initCmd, runCmd, statusCmd} {
		cmd.Flags().String("data", dd, "Data directory (~/.beacon)")
	}
	initCmd.Flags().String("name", "", "Display name carried on your messages")

	runCmd.Flags().String("config", "", "Path to config.yaml")
	runCmd.Flags().String("name", "", "Display name carried on your messages")
	runCmd.Flags().String("listen", "0.0.0.0:4780", "TCP listen address for peer connections")
	runCmd.Flags().StringSlice("peers", []string{}, "Bootstrap peer addresses (host:port)")

	rootCmd.AddCommand(initCmd, runCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
