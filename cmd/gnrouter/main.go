// Command gnrouter runs the Geonetworking router as a standalone process:
// load configuration, bring up a link-layer device, and drive the engine's
// main loop until terminated. Replaces the teacher's flag-based cmd/bgp.go
// main with a cobra command tree, matching how the rest of the pack
// structures multi-subcommand CLIs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/veloce/gnrouter/config"
	"github.com/veloce/gnrouter/device"
	"github.com/veloce/gnrouter/engine"
	"github.com/veloce/gnrouter/gnaddr"
	gnlog "github.com/veloce/gnrouter/log"
	"github.com/veloce/gnrouter/metrics"
	"github.com/veloce/gnrouter/netmon"
	"github.com/veloce/gnrouter/security"
	"github.com/veloce/gnrouter/socket"
)

// version is set at release build time via -ldflags; "dev" otherwise.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgPath string
	var macStr string
	var pretty bool

	root := &cobra.Command{
		Use:   "gnrouter",
		Short: "Geonetworking router",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "/etc/gnrouter/config.yaml", "configuration file path")
	root.PersistentFlags().BoolVar(&pretty, "pretty", false, "console-pretty log output instead of JSON")
	viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	root.AddCommand(versionCmd())
	root.AddCommand(configCmd(&cfgPath))
	root.AddCommand(runCmd(&cfgPath, &macStr, &pretty))

	return root
}

func configCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration file operations",
	}
	cmd.AddCommand(configCheckCmd(cfgPath))
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gnrouter version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

func configCheckCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load and validate the configuration file, printing it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			js, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(js))
			return nil
		},
	}
}

func runCmd(cfgPath, macStr *string, pretty *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the router's main loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRouter(*cfgPath, *macStr, *pretty)
		},
	}
	cmd.Flags().StringVar(macStr, "mac", "", "station link-layer address (required)")
	return cmd
}

func runRouter(cfgPath, macStr string, pretty bool) error {
	log := gnlog.New(os.Stderr, pretty)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("gnrouter: %w", err)
	}

	dev, err := buildDevice(cfg, macStr)
	if err != nil {
		return fmt.Errorf("gnrouter: device: %w", err)
	}

	ownAddr, err := ownAddress(cfg, macStr)
	if err != nil {
		return fmt.Errorf("gnrouter: %w", err)
	}

	reg := metrics.New()

	deps := engine.Deps{
		Device:   dev,
		Security: security.NoopService{},
		Sockets:  socket.NewSet(),
		Log:      log,
		Metrics:  reg,
	}

	e := engine.New(cfg, deps, ownAddr, time.Now().UnixNano())
	sup := engine.NewSupervisor(e)

	stopWatch, err := config.Watch(cfgPath, func(next config.Config) {
		sup.Configure(next)
	})
	if err != nil {
		log.WARNING("config", gnlog.KV{"error": err.Error()})
	} else {
		defer stopWatch()
	}

	mon := netmon.New(e.Loctable(), neighbourLogNotifier{log}, 2*time.Second)
	mon.Start()
	defer mon.Stop()

	srv := &http.Server{Addr: cfg.MetricsListenAddr, Handler: reg.Handler()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.ERR("metrics", gnlog.KV{"error": err.Error()})
		}
	}()

	if err := sup.Start(); err != nil {
		return err
	}
	log.INFO("gnrouter", gnlog.KV{"address": ownAddr.String(), "medium": cfg.IfType.String()})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.INFO("gnrouter", gnlog.KV{"event": "shutting down"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)

	return sup.Stop()
}

func buildDevice(cfg config.Config, macStr string) (device.Device, error) {
	switch cfg.IfType {
	case config.IfTypeUDP:
		laddr, err := net.ResolveUDPAddr("udp", cfg.DevicePath)
		if err != nil {
			return nil, err
		}
		return device.NewUDPTunnelAdapter(laddr, 1400)
	case config.IfTypeEthernet, config.IfTypeIEEE80211p:
		return nil, fmt.Errorf("raw ethernet/802.11p device_path %q requires an AF_PACKET socket binding not provided by this build; use if_type udp (3) for testing", cfg.DevicePath)
	default:
		return nil, fmt.Errorf("unsupported if_type %q", cfg.IfType.String())
	}
}

func ownAddress(cfg config.Config, macStr string) (gnaddr.Address, error) {
	if macStr == "" {
		return gnaddr.Address{}, fmt.Errorf("--mac is required")
	}
	mac, err := net.ParseMAC(macStr)
	if err != nil || len(mac) != 6 {
		return gnaddr.Address{}, fmt.Errorf("invalid --mac %q", macStr)
	}
	var linkAddr [6]byte
	copy(linkAddr[:], mac)
	return gnaddr.FromMAC(linkAddr, gnaddr.StationType(cfg.StationType)), nil
}

type neighbourLogNotifier struct {
	log gnlog.Notifier
}

func (n neighbourLogNotifier) NeighbourUp(linkAddr [6]byte) {
	n.log.NOTICE("netmon", gnlog.KV{"neighbour": fmt.Sprintf("%x", linkAddr), "up": true})
}

func (n neighbourLogNotifier) NeighbourDown(linkAddr [6]byte) {
	n.log.NOTICE("netmon", gnlog.KV{"neighbour": fmt.Sprintf("%x", linkAddr), "up": false})
}
