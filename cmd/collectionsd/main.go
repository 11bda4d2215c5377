package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/kbase/collections/cmd/collectionsd/handlers"
	"github.com/kbase/collections/pkg/buildtime"
	"github.com/kbase/collections/pkg/configs/service"
	"github.com/kbase/collections/pkg/domain/collections"
	"github.com/kbase/collections/pkg/logging"
	"github.com/kbase/collections/pkg/utils/echoutil"
	"github.com/kbase/collections/pkg/utils/filewatch"
	kstrings "github.com/kbase/collections/pkg/utils/strings"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config-path", "", "service config path")
	loglevel := flag.String("loglevel", "", "log level. debug|info|warn|error. default: loglevel in config")
	apiRoot := flag.String("api-root", "/", "path prefix of the API")
	pversion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *pversion {
		fmt.Println(buildtime.VersionString())
		return
	}

	conf, err := service.Load(*configPath)
	if err != nil {
		log.Fatalf("can not read configuration: %s", err)
	}
	level := conf.LogLevel()
	if *loglevel != "" {
		level = *loglevel
	}

	z, err := logging.New(level, conf.LogFormat())
	if err != nil {
		log.Fatalf("can not build logger: %s", err)
	}
	undo := logging.Redirect(z)

	err = run(conf, *configPath, level, *apiRoot, z)
	if err != nil {
		z.Error("collectionsd stopped", zap.Error(err))
	}
	undo()
	z.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run serves the API until a signal arrives, or the config or the schema is updated.
//
// Updates are reported as errors, so that the process supervisor restarts the server.
func run(conf *service.Config, configPath string, level string, apiRoot string, z *zap.Logger) error {
	logger := logging.Std(z, "collectionsd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel, err := filewatch.UntilModifyContext(ctx, configPath)
	if err != nil {
		return fmt.Errorf("can not watch configuration: %w", err)
	}
	defer cancel()

	svc, err := collections.New(ctx, conf, logger)
	if err != nil {
		return fmt.Errorf("can not start service: %w", err)
	}
	defer svc.Close()

	ctx, cancelSchema := svc.Database().Schema().Context(ctx)
	defer cancelSchema()
	if ctx.Err() != nil {
		return fmt.Errorf("database is not ready: %w", context.Cause(ctx))
	}

	if err := svc.Queue().Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("can not start workers: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.AddTrailingSlash())
	e.Logger.SetOutput(logger.Writer())
	echoutil.SetLevel(e, level)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		e.DefaultHTTPErrorHandler(err, c)
		if herr := new(echo.HTTPError); errors.As(err, &herr) && herr.Code < http.StatusInternalServerError {
			e.Logger.Info(err)
			return
		}
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	routes(e, root(apiRoot), svc)

	logger.Println("registered routes:")
	for _, r := range e.Routes() {
		logger.Println(r.Method, r.Path)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(fmt.Sprintf(":%d", conf.Port()))
	}()

	var ret error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			ret = err
		}
	case <-ctx.Done():
		cause := context.Cause(ctx)
		z.Info("shutting down", zap.NamedError("cause", cause))
		if !errors.Is(cause, context.Canceled) {
			ret = cause
		}
		graceful, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(graceful); err != nil {
			z.Error("error on shutdown", zap.Error(err))
		}
	}

	if err := svc.Queue().Stop(shutdownTimeout); err != nil {
		z.Warn("jobs are cancelled", zap.Error(err))
	}
	return ret
}

func routes(e *echo.Echo, api func(...string) string, svc *collections.Collections) {
	const (
		coll    = "coll"
		tag     = "tag"
		num     = "num"
		matcher = "matcher"
		mtch    = "match"
		sel     = "selection"
		product = "product"
	)
	colls := svc.Collections()
	matches := svc.Matches()
	selections := svc.Selections()

	e.GET(api(), handlers.RootHandler(time.Now))

	{
		e.GET(api("collections"), handlers.ListCollectionsHandler(colls))
		e.GET(api("collections", ":coll"), handlers.GetCollectionHandler(colls, coll))
		e.GET(api("collections", ":coll", "versions"), handlers.ListVersionsHandler(colls, coll))
		e.GET(api("collections", ":coll", "versions", "tag", ":tag"), handlers.GetVersionByTagHandler(colls, coll, tag))
		e.GET(api("collections", ":coll", "versions", "num", ":num"), handlers.GetVersionByNumHandler(colls, coll, num))
		e.PUT(api("collections", ":coll", "versions", ":tag"), handlers.SaveVersionHandler(colls, coll, tag))
		e.PUT(api("collections", ":coll", "versions", "tag", ":tag", "activate"), handlers.ActivateByTagHandler(colls, coll, tag))
		e.PUT(api("collections", ":coll", "versions", "num", ":num", "activate"), handlers.ActivateByNumHandler(colls, coll, num))
	}

	{
		e.POST(api("collections", ":coll", "matchers", ":matcher"), handlers.CreateMatchHandler(colls, matches, coll, matcher))
		e.POST(api("collections", ":coll", "matchsets"), handlers.CreateMatchSetHandler(colls, matches, coll))
		e.GET(api("collections", ":coll", "matches", ":match"), handlers.GetMatchHandler(colls, matches, coll, mtch))
		e.PUT(api("collections", ":coll", "matches", ":match", "apply", ":product"), handlers.ApplyMatchHandler(colls, matches, coll, mtch, product))
		e.DELETE(api("matches", ":match"), handlers.DeleteMatchHandler(matches, mtch))
	}

	{
		e.POST(api("collections", ":coll", "selections"), handlers.CreateSelectionHandler(colls, selections, coll))
		e.GET(api("collections", ":coll", "selections", ":selection"), handlers.GetSelectionHandler(colls, selections, coll, sel))
		e.PUT(api("collections", ":coll", "selections", ":selection", "apply", ":product"), handlers.ApplySelectionHandler(colls, selections, coll, sel, product))
		e.GET(api("collections", ":coll", "selections", ":selection", "export"), handlers.ExportSelectionHandler(colls, selections, coll, sel))
		e.DELETE(api("selections", ":selection"), handlers.DeleteSelectionHandler(selections, sel))
	}

	{
		e.GET(
			api("collections", ":coll", "data_products", "genome_attribs"),
			handlers.ListGenomeAttribsHandler(colls, matches, selections, svc.GenomeAttribs(), coll),
		)
		e.GET(
			api("collections", ":coll", "data_products", "taxa_count", "ranks"),
			handlers.ListRanksHandler(colls, svc.TaxaCount(), coll),
		)
		e.GET(
			api("collections", ":coll", "data_products", "taxa_count", "counts"),
			handlers.ListTaxaCountHandler(colls, matches, selections, svc.TaxaCount(), coll),
		)
	}

	e.GET(api("metrics"), echo.WrapHandler(svc.Metrics().Handler()))
}

// root returns a factory of route paths under r.
//
// Each path is "/" terminated, to be matched after AddTrailingSlash.
func root(r string) func(...string) string {
	return func(s ...string) string {
		parts := append([]string{"/", r}, s...)
		return kstrings.SupplySuffix(path.Join(parts...), "/")
	}
}
