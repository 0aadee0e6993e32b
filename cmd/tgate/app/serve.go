package app

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/termgate/termgate/pkg/api"
	"github.com/termgate/termgate/pkg/catalog"
	"github.com/termgate/termgate/pkg/gateway"
	"github.com/termgate/termgate/pkg/kubectx"
	"github.com/termgate/termgate/pkg/logger"
	"github.com/termgate/termgate/pkg/remote"
	"github.com/termgate/termgate/pkg/session"
	"github.com/termgate/termgate/pkg/state"
	"github.com/termgate/termgate/pkg/telemetry"
)

const (
	// appName names the user data directory holding the catalogs.
	appName = "termgate"

	defaultHost = "127.0.0.1"
	defaultPort = 3001
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the terminal gateway daemon",
		Long: `Start the terminal gateway: the WebSocket endpoint at /ws and the HTTP
catalog routes on the same listener. The daemon runs until interrupted.`,
		RunE: runServe,
	}

	flags := cmd.Flags()
	flags.String("host", defaultHost, "Address to listen on")
	flags.Int("port", defaultPort, "Port to listen on")
	flags.Int64("max-frame-size", gateway.DefaultMaxFrameSize, "Largest accepted WebSocket frame in bytes")
	flags.Duration("ssh-idle-timeout", remote.DefaultIdleTimeout, "How long an unreferenced SSH transport stays pooled")
	flags.Duration("ssh-params-ttl", catalog.DefaultSSHParamsTTL, "How long remembered SSH parameters stay reconnectable")

	for _, name := range []string{"host", "port", "max-frame-size", "ssh-idle-timeout", "ssh-params-ttl"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			logger.Errorf("Error binding %s flag: %v", name, err)
		}
	}

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := state.NewCatalogStore(appName)
	if err != nil {
		return fmt.Errorf("failed to open the catalog store: %w", err)
	}
	images := catalog.NewImageCatalog(store)
	sshParams := catalog.NewSSHParamsCatalog(store, viper.GetDuration("ssh-params-ttl"))

	metrics := telemetry.NewMetrics()
	terminals := session.NewManager(images, metrics)
	pool := remote.NewPool(remote.WithIdleTimeout(viper.GetDuration("ssh-idle-timeout")))
	remotes := remote.NewRegistry(pool, sshParams, metrics)
	gw := gateway.NewGateway(terminals, remotes, metrics, viper.GetInt64("max-frame-size"))

	address := net.JoinHostPort(viper.GetString("host"), strconv.Itoa(viper.GetInt("port")))
	err = api.Serve(ctx, address, api.Deps{
		Terminals: terminals,
		Remotes:   remotes,
		Images:    images,
		Contexts:  kubectx.NewLister(),
		Metrics:   metrics,
		Gateway:   gw,
	})

	// The HTTP server is down; WebSocket connections are hijacked and
	// survive it, so tear them down before the sessions they own and the
	// transports under those sessions.
	gw.Shutdown()
	terminals.Shutdown()
	remotes.Shutdown()
	pool.Shutdown()

	return err
}
