package main

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/aukilabs/cubesphere/build"
	"github.com/aukilabs/cubesphere/featureflag"
	chttp "github.com/aukilabs/cubesphere/http"
	"github.com/aukilabs/cubesphere/planet"
	"github.com/aukilabs/cubesphere/quadtree"
	"github.com/aukilabs/cubesphere/render"
	cwebsocket "github.com/aukilabs/cubesphere/websocket"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
)

var (
	// The version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "cubesphere_info",
		Help:        "Cubesphere information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	AdminAddr     string        `cli:""        env:"CUBESPHERE_ADMIN_ADDR"      help:"Admin listening address."`
	PlanetFile    string        `cli:""        env:"CUBESPHERE_PLANET_FILE"     help:"The YAML file describing the planet. The default planet is used when empty."`
	LogLevel      string        `cli:""        env:"CUBESPHERE_LOG_LEVEL"       help:"Log level (debug|info|warning|error)."`
	LogIndent     bool          `cli:""        env:"CUBESPHERE_LOG_INDENT"      help:"Indent logs."`
	FrameDuration time.Duration `cli:",hidden" env:"CUBESPHERE_FRAME_DURATION"  help:"The duration of a frame."`
	Orbit         orbitConfig   `cli:",hidden" env:"-"                          help:"Camera orbit configuration."`
	FeatureFlags  []string      `cli:",hidden" env:"CUBESPHERE_FEATURE_FLAGS"   help:"Comma separated feature flags."`
	Version       bool          `cli:""        env:"-"                          help:"Show version."`
	Help          bool          `cli:""        env:"-"                          help:"Show help."`
}

type orbitConfig struct {
	Distance float64       `cli:",hidden" env:"CUBESPHERE_ORBIT_DISTANCE" help:"The distance between the camera and the planet center."`
	Height   float64       `cli:",hidden" env:"CUBESPHERE_ORBIT_HEIGHT"   help:"The camera height above the equator, relative to the distance."`
	Period   time.Duration `cli:",hidden" env:"CUBESPHERE_ORBIT_PERIOD"   help:"The time the camera takes to go around the planet."`
	FovY     float64       `cli:",hidden" env:"CUBESPHERE_ORBIT_FOV"      help:"The camera vertical field of view, in degrees."`
}

func main() {
	conf := config{
		AdminAddr:     ":18190",
		LogLevel:      logs.InfoLevel.String(),
		FrameDuration: time.Millisecond * 16,
		Orbit: orbitConfig{
			Distance: 150000,
			Height:   0.25,
			Period:   time.Minute * 2,
			FovY:     60,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Runs a headless cube-sphere planet.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	planetConf := planet.DefaultConfig()
	if conf.PlanetFile != "" {
		var err error
		if planetConf, err = planet.Load(conf.PlanetFile); err != nil {
			logs.Fatal(err)
		}
	}

	codec, err := build.NewCodec()
	if err != nil {
		logs.Fatal(err)
	}
	defer codec.Close()

	workers := build.NewWorkers(codec, planetConf.Build.Workers, planetConf.Build.QueueSize)
	defer workers.Close()

	flags := featureflag.New(conf.FeatureFlags)
	textures := render.NamedTextureSet(quadtree.ShortNames(), planetConf.Dimensions)

	p, err := planet.New(planetConf, textures, workers, codec, planet.WithFeatureFlags(flags))
	if err != nil {
		logs.Fatal(errors.New("creating planet failed").Wrap(err))
	}

	if err := p.Start(ctx); err != nil {
		logs.Fatal(errors.New("starting planet failed").Wrap(err))
	}

	var hub cwebsocket.Hub
	defer hub.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runFrames(ctx, p, &hub, planetConf.Center, conf)
	}()

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", chttp.HandleHealthCheck)
	admin.HandleFunc("/ready", chttp.HandleReadyCheck(p.Ready))
	admin.Handle("/version", chttp.HandleWithCORS(chttp.HandleVersion(version)))
	admin.Handle("/tiles", chttp.HandleWithCORS(chttp.HandleJSON(func() any {
		return p.MetaData()
	})))
	admin.Handle("/frames", hub.Handler(ctx))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("planet", planetConf.Name).
		WithTag("feature_flags", flags.Names()).
		Info("starting cubesphere")

	chttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.AdminAddr, Handler: metrics.HTTPHandler(&admin,
			chttp.MetricsPathFormatter)},
	)

	wg.Wait()
}

// runFrames updates the planet every frame with a camera orbiting around it,
// and streams the frame stats to the hub clients.
func runFrames(ctx context.Context, p *planet.Planet, hub *cwebsocket.Hub, center mgl64.Vec3, conf config) {
	cam := render.NewPerspectiveCamera(mgl64.DegToRad(conf.Orbit.FovY), 16.0/9, 1, conf.Orbit.Distance*4)

	ticker := time.NewTicker(conf.FrameDuration)
	defer ticker.Stop()

	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return

		case now := <-ticker.C:
			orbit(cam, center, conf.Orbit, now.Sub(start))

			stats := p.Update(ctx, cam)
			if stats.Completed != 0 || stats.Failed != 0 {
				logs.WithTag("frame", stats.Frame).
					WithTag("completed", stats.Completed).
					WithTag("failed", stats.Failed).
					WithTag("pending", stats.Pending).
					WithTag("visible", stats.Visible).
					Debug("tiles updated")
			}

			if err := hub.Broadcast(stats); err != nil {
				logs.Warn(err)
			}
		}
	}
}

func orbit(cam *render.PerspectiveCamera, center mgl64.Vec3, conf orbitConfig, elapsed time.Duration) {
	angle := 2 * math.Pi * elapsed.Seconds() / conf.Period.Seconds()

	cam.Position = center.Add(mgl64.Vec3{
		math.Sin(angle) * conf.Distance,
		conf.Height * conf.Distance,
		math.Cos(angle) * conf.Distance,
	})
	cam.LookAt(center)
}

func validateConfig(conf config) error {
	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration.String())
	}

	if conf.Orbit.Distance <= 0 || conf.Orbit.Period <= 0 {
		return errors.New("camera orbit must have a positive distance and period").
			WithTag("distance", conf.Orbit.Distance).
			WithTag("period", conf.Orbit.Period.String())
	}

	if conf.Orbit.FovY <= 0 || conf.Orbit.FovY >= 180 {
		return errors.New("camera field of view must be between 0 and 180 degrees").
			WithTag("fov", conf.Orbit.FovY)
	}

	return nil
}
