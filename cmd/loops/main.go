package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbase/collections/pkg/configs/service"
	"github.com/kbase/collections/pkg/domain"
	"github.com/kbase/collections/pkg/domain/collections"
	"github.com/kbase/collections/pkg/logging"
	"github.com/kbase/collections/pkg/loop/recurring"
	"github.com/kbase/collections/pkg/utils/args"
	"github.com/kbase/collections/pkg/utils/filewatch"
	"github.com/kbase/collections/pkg/utils/try"
	"github.com/labstack/echo/v4"
)

func main() {
	pconfig := flag.String(
		"config", os.Getenv("COLLECTIONS_CONFIG"), "path to config file",
	)
	loopType := args.Parser(domain.AsLoopType)
	flag.Var(loopType, "type", "one of loop type: reconcile|reaper|cleanup")
	policy := args.ParserWithDefault(recurring.ParsePolicy, recurring.Forever(10*time.Second))
	flag.Var(
		policy, "policy",
		`loop policy (syntax: forever[:COOLDOWN]|backlog|once).`+
			` "forever[:COOLDOWN]" = run forever until error. When backlog is over, `+
			`wait COOLDOWN (optional duration. default: 0) as inteval.`+
			` "backlog" = run until error or backlog is over.`+
			` "once" = run one cycle.`,
	)
	timeout := flag.Duration("timeout", 5*time.Minute, "timeout of each cycle")
	metricsAddr := flag.String("metrics", "", "address to serve /metrics. empty to disable")
	flag.Parse()

	conf := try.To(service.Load(*pconfig)).OrFatal(log.Default())
	if !loopType.IsSet() {
		log.Fatal("-type is required")
	}

	z := try.To(logging.New(conf.LogLevel(), conf.LogFormat())).OrFatal(log.Default())
	defer z.Sync()
	logger := logging.Std(z, "loops")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	{
		// watch config
		wctx, cancel, err := filewatch.UntilModifyContext(ctx, *pconfig)
		if err != nil {
			logger.Fatal(err)
		}
		defer cancel()
		ctx = wctx
	}

	svc := try.To(collections.New(ctx, conf, logger)).OrFatal(logger)
	defer svc.Close()

	{
		sctx, scancel := svc.Database().Schema().Context(ctx)
		defer scancel()
		ctx = sctx
	}

	if addr := *metricsAddr; addr != "" {
		e := echo.New()
		e.HideBanner = true
		e.HidePort = true
		e.GET("/metrics", echo.WrapHandler(svc.Metrics().Handler()))
		go func() {
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("metrics server stopped: %s", err)
			}
		}()
		defer e.Close()
	}

	logger.Printf(
		`start loop "%s" /w policy "%s"`,
		loopType.Value().String(), policy.Value().String(),
	)

	err := StartLoop(
		ctx, logger, svc,
		LoopManifest{
			Type:    loopType.Value(),
			Policy:  recurring.UntilError(policy.Value()),
			Timeout: *timeout,
		},
	)

	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		cause := context.Cause(ctx)
		if errors.Is(cause, context.Canceled) {
			// by signal
			return
		}
		logger.Print(err, " (loop context is cancelled by: ", cause, ")")
	} else {
		logger.Print(err)
	}
	svc.Close()
	z.Sync()
	os.Exit(1)
}
