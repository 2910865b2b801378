package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/baca2-project/judgekeeper/internal/api"
	"github.com/baca2-project/judgekeeper/internal/broker"
	"github.com/baca2-project/judgekeeper/internal/config"
	"github.com/baca2-project/judgekeeper/internal/events"
	"github.com/baca2-project/judgekeeper/internal/pkgtree"
	"github.com/baca2-project/judgekeeper/internal/session"
	"github.com/baca2-project/judgekeeper/internal/storage/postgres"
	"github.com/baca2-project/judgekeeper/internal/version"
)

// Workers announce themselves on this topic; each announcement doubles
// as a heartbeat.
const registrationTopic = "judges/register"

func main() {
	configPath := flag.String("config", "configs/instance.yaml", "path to instance.yaml")
	flag.Parse()

	cfg, err := config.LoadInstanceConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load instance config: %v", err)
	}

	log.Printf("judged %s starting as instance %s", version.Version, cfg.Instance.ID)

	api.InitAuth()
	api.InitTLS()
	api.InitMetrics()
	api.InitAlerts()
	api.SetInstanceName(cfg.Instance.ID)
	api.SetStuckAfter(time.Duration(cfg.StuckAfterSec()) * time.Second)

	// Event store. The keeper runs without it, but restore and the
	// durable log need it.
	pg, err := postgres.New(cfg.Instance.ID)
	if err != nil {
		log.Printf("postgres unavailable, event log disabled: %v", err)
		api.SetPostgresState(false, true)
	} else {
		events.SetPostgresClient(pg)
		api.SetPostgresState(true, false)
		defer pg.Close()
	}

	password, err := config.ResolveSecret("BACA_BROKER_PASSWORD")
	if err != nil {
		log.Fatalf("failed to resolve BACA_BROKER_PASSWORD: %v", err)
	}

	registry := broker.NewWorkerRegistry()
	monitor := broker.NewMonitor(cfg.WorkerSpecs(), 0)
	manager := session.NewManager()

	client := broker.NewClient("judgekeeper-" + cfg.Instance.ID)
	subscriber := broker.NewResultSubscriber(client, registry, password,
		manager.OnResult, manager.OnError)

	registrationHandler := func(_ paho.Client, msg paho.Message) {
		payload, err := broker.ParseRegistration(msg.Payload())
		if err != nil {
			events.Emit("error", "judge.error", "bad registration", map[string]any{
				"error": err.Error(),
			})
			return
		}
		result := monitor.HandleRegistration(payload)
		if !result.Valid {
			return
		}
		registry.RegisterFromPayload(payload)
		if err := subscriber.SubscribeWorker(registry.Get(payload.Worker.ID)); err != nil {
			events.Emit("error", "judge.error", "subscribe failed", map[string]any{
				"worker": payload.Worker.ID,
				"error":  err.Error(),
			})
		}
	}

	if client.StartWithRetry(registrationTopic, registrationHandler) {
		api.SetMQTTState(true, false)
	} else {
		api.SetMQTTState(false, false)
	}
	monitor.Start(10 * time.Second)
	defer monitor.Stop()

	openSession := func(req *broker.SubmitRequest, restored *session.RestoredState) error {
		pkg, err := pkgtree.OpenPackage(req.PackagePath, req.CommitID)
		if err != nil {
			return fmt.Errorf("open package: %w", err)
		}
		g, err := pkg.LoadGraph()
		if err != nil {
			return fmt.Errorf("load graph: %w", err)
		}
		events.EmitSubmit(req.SubmitID, "info", "graph.loaded", "", map[string]any{
			"package": pkg.Title(),
			"commit":  req.CommitID,
		})

		report, err := g.CheckIntegrity()
		if err != nil {
			return fmt.Errorf("check graph: %w", err)
		}
		events.EmitSubmit(req.SubmitID, "info", "graph.checked", "", map[string]any{
			"clean": report.NoErrors(),
		})
		if !report.NoErrors() {
			return fmt.Errorf("package %s: judging graph has integrity defects", req.PackagePath)
		}

		for _, n := range g.Nodes() {
			if bn, ok := n.(*broker.Node); ok {
				bn.Attach(client, registry, password)
			}
		}

		s, err := manager.Open(req.SubmitID, g, req)
		if err != nil {
			return err
		}
		if restored != nil {
			return s.ApplyRestored(restored)
		}
		return s.Begin()
	}

	// Bring back submissions that were in flight when the previous
	// process died.
	states, err := session.RestoreOpenSubmits(events.GetPostgresClient())
	if err != nil {
		log.Printf("restore failed: %v", err)
	}
	restoredCount := 0
	for _, state := range states {
		req := &broker.SubmitRequest{
			Version:     broker.ProtocolVersion,
			SubmitID:    state.SubmitID,
			PackagePath: state.PackagePath,
			CommitID:    state.CommitID,
		}
		if err := openSession(req, state); err != nil {
			log.Printf("restore of %s failed: %v", state.SubmitID, err)
			continue
		}
		restoredCount++
	}
	session.EmitStartupRestore(restoredCount, cfg.Instance.ID)

	api.SetSessionManager(manager)
	api.SetSubmitHandler(func(req *broker.SubmitRequest) error {
		return openSession(req, nil)
	})

	api.SetEngineReady(true)
	api.StartAlertMonitor(30 * time.Second)
	api.Start(cfg.APIPort())

	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "judged started", map[string]any{
		"instance": cfg.Instance.ID,
		"hostname": hostname,
		"version":  version.Version,
		"pid":      os.Getpid(),
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	events.Emit("info", "system.shutdown", "judged stopping", map[string]any{
		"instance": cfg.Instance.ID,
		"signal":   sig.String(),
	})
	api.SetEngineReady(false)
	client.Disconnect()
}
