// Command simulator replays a scripted V2X scenario through the trust
// plane: it registers vehicles and a roadside unit, feeds pre-decided
// proximity/collision events into the exchange boundary, revokes a
// credential mid-run, and logs every classified verdict. The traffic
// engine and geometry that would normally produce the events are out of
// scope; the script stands in for them.
package main

import (
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/authority"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/config"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/exchange"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/holder"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/metrics"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/protocol"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/store"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	steps := flag.Int("steps", 25, "Number of scripted simulation steps")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Configuration: %v", err)
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("simulator starting", zap.String("version", version.String()))

	st, err := openStore(cfg.Storage)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer st.Close() //nolint:errcheck

	reg := prometheus.NewRegistry()
	mset := metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, reg, logger)
	}

	ca, err := authority.Open(cfg.CA, st, logger, mset)
	if err != nil {
		logger.Fatal("certifying authority unavailable", zap.Error(err))
	}

	if err := run(cfg, ca, mset, logger, *steps); err != nil {
		logger.Fatal("simulation failed", zap.Error(err))
	}
	logger.Info("simulation terminated gracefully")
}

// run registers the scenario entities and drives the scripted exchanges.
func run(cfg *config.Config, ca *authority.Authority, mset *metrics.Set, logger *zap.Logger, steps int) error {
	curve, err := config.ParseCurve(cfg.CA.Curve)
	if err != nil {
		return err
	}
	hcfg := holder.Config{
		PoolSize:       cfg.Credentials.PoolSize,
		RotationPeriod: cfg.Credentials.RotationPeriod,
		Curve:          curve,
		Logger:         logger,
	}

	vehicleA, err := holder.NewVehicle("veh-001", ca, hcfg)
	if err != nil {
		return err
	}
	vehicleB, err := holder.NewVehicle("veh-002", ca, hcfg)
	if err != nil {
		return err
	}
	light, err := holder.NewInfrastructure("tl-01", ca, hcfg)
	if err != nil {
		return err
	}

	x := exchange.New(ca, logger, mset, time.Now)

	for step := 0; step < steps; step++ {
		now := time.Now()

		// Two vehicles closing in on each other every few steps.
		if step%3 == 0 {
			ev := exchange.Event{
				SenderID:           vehicleA.ID(),
				ReceiverID:         vehicleB.ID(),
				CollisionPredicted: true,
				Proximity:          cfg.Channels.BSMDistance - 1,
				TimeToCollision:    cfg.Channels.SafeTTC - 0.8,
			}
			bsm := protocol.BasicSafetyMessage{
				VehicleID:    vehicleA.ID(),
				MessageCount: vehicleA.MessageCount(),
				Timestamp:    now,
				Latitude:     102.5 + float64(step),
				Longitude:    240.1,
				Speed:        13.9,
				Heading:      90,
				Size:         [2]float64{4.3, 1.8},
			}
			if _, verdict, err := x.VehicleToVehicle(vehicleA, ev, bsm); err != nil {
				return err
			} else if !verdict.OK() {
				logger.Warn("BSM rejected", zap.String("status", verdict.String()))
			}
		}

		// A pedestrian steps into vehicle B's path once.
		if step == 7 {
			ev := exchange.Event{
				SenderID:           vehicleB.ID(),
				ReceiverID:         "ped-042",
				CollisionPredicted: true,
				Proximity:          cfg.Channels.PSMDistance - 2,
				TimeToCollision:    1.2,
			}
			psm := protocol.PedestrianSafetyMessage{
				VehicleID:    vehicleB.ID(),
				MessageCount: vehicleB.MessageCount(),
				Timestamp:    now,
				Position:     [2]float64{88.0, 12.5},
				Speed:        8.3,
				Heading:      180,
			}
			if _, _, err := x.VehicleToPedestrian(vehicleB, ev, psm); err != nil {
				return err
			}
		}

		// The roadside unit broadcasts its phase to whichever vehicle is in range.
		ev := exchange.Event{
			SenderID:   light.ID(),
			ReceiverID: vehicleA.ID(),
			Proximity:  cfg.Channels.V2IRange / 2,
		}
		spat := protocol.SignalPhaseMessage{
			InfrastructureID: light.ID(),
			MessageCount:     light.MessageCount(),
			Timestamp:        now,
			State:            "GrYr",
		}
		if _, _, err := x.InfrastructureToVehicle(light, ev, spat); err != nil {
			return err
		}

		// Midway through, the authority learns vehicle A's active key is
		// compromised. Every later payload signed with it must classify
		// as revoked.
		if step == steps/2 {
			serial, err := activeSerial(vehicleA)
			if err != nil {
				return err
			}
			ca.Revoke(serial, "key compromise", ca.Name())
		}
	}

	return nil
}

// activeSerial extracts the serial of the vehicle's current certificate.
func activeSerial(v *holder.Vehicle) (string, error) {
	block, _ := pem.Decode(v.ActiveCertificate())
	if block == nil {
		return "", fmt.Errorf("active certificate is not PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("parse active certificate: %w", err)
	}
	return cert.SerialNumber.String(), nil
}

func openStore(cfg config.Storage) (store.Store, error) {
	if cfg.Path == "" {
		return store.NewMemoryStore(), nil
	}
	return store.NewSQLiteStore(cfg.Path)
}

func buildLogger(cfg config.Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.File != "" {
		zcfg.OutputPaths = []string{cfg.File}
	}
	return zcfg.Build()
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info("metrics listener up", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics listener stopped", zap.Error(err))
	}
}
