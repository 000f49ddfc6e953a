package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/suparena/docstore"
	"github.com/suparena/docstore/bootstrap"
	"github.com/suparena/docstore/config"
	"github.com/suparena/docstore/storagemodels"
	"go.mongodb.org/mongo-driver/bson"
)

const usage = `Usage: docstore [flags] <command> [command flags]

Commands:
  count                    count documents matching -filter
  find [-page N -limit N]  print documents matching -filter
       [-sort JSON]
  aggregate -pipeline JSON print the results of an aggregation pipeline

Flags:
`

var (
	versionFlag    = flag.Bool("version", false, "Show version information")
	vFlag          = flag.Bool("v", false, "Show version information (short)")
	configFlag     = flag.String("config", "", "Path to a YAML config file")
	collectionFlag = flag.String("collection", "", "Collection to operate on")
	filterFlag     = flag.String("filter", "{}", "Filter as extended JSON")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *versionFlag || *vFlag {
		info := docstore.GetVersionInfo()
		fmt.Printf("docstore version %s\n", info.Version)
		fmt.Printf("Git commit: %s\n", info.GitCommit)
		fmt.Printf("Build date: %s\n", info.BuildDate)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, flag.Args(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "docstore: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("no command given")
	}
	if *collectionFlag == "" {
		return fmt.Errorf("-collection is required")
	}
	filter, err := parseDocument(*filterFlag)
	if err != nil {
		return fmt.Errorf("invalid -filter: %w", err)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		return err
	}
	backend, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close(context.Background())

	svc := bootstrap.OpenService[bson.M](backend, *collectionFlag)
	return execute(ctx, svc, args[0], args[1:], filter, out)
}

func execute(ctx context.Context, svc *docstore.Service[bson.M], command string, args []string, filter bson.M, out io.Writer) error {
	switch command {
	case "count":
		n, err := svc.Count(ctx, filter)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, n)
		return err

	case "find":
		fs := flag.NewFlagSet("find", flag.ContinueOnError)
		page := fs.Int64("page", 0, "Page number, starting at 1")
		limit := fs.Int64("limit", 0, "Page size")
		sortFlag := fs.String("sort", "", "Sort specification as extended JSON, e.g. {\"age\": -1}")
		if err := fs.Parse(args); err != nil {
			return err
		}

		opts := []storagemodels.QueryOption{storagemodels.WithPagination(*page, *limit)}
		if *sortFlag != "" {
			var sortSpec bson.D
			if err := bson.UnmarshalExtJSON([]byte(*sortFlag), false, &sortSpec); err != nil {
				return fmt.Errorf("invalid -sort: %w", err)
			}
			opts = append(opts, storagemodels.WithSort(sortSpec))
		}

		result, err := svc.FindPage(ctx, filter, opts...)
		if err != nil {
			return err
		}
		if err := printDocuments(out, result.Data); err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "# page %d of %d, %d total\n", result.CurrentPage, result.TotalPages, result.Total)
		return err

	case "aggregate":
		fs := flag.NewFlagSet("aggregate", flag.ContinueOnError)
		pipelineFlag := fs.String("pipeline", "[]", "Aggregation pipeline as an extended JSON array")
		if err := fs.Parse(args); err != nil {
			return err
		}
		pipeline, err := parsePipeline(*pipelineFlag)
		if err != nil {
			return fmt.Errorf("invalid -pipeline: %w", err)
		}
		if len(filter) > 0 {
			pipeline = append(storagemodels.Pipeline{{"$match": filter}}, pipeline...)
		}

		results, err := docstore.Aggregate[bson.M](ctx, svc, pipeline)
		if err != nil {
			return err
		}
		return printDocuments(out, results)
	}

	return fmt.Errorf("unknown command %q", command)
}

func parseDocument(s string) (bson.M, error) {
	doc := bson.M{}
	if err := bson.UnmarshalExtJSON([]byte(s), false, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// parsePipeline decodes a JSON array of stages; extended JSON only decodes
// documents, so the array is wrapped in one.
func parsePipeline(s string) (storagemodels.Pipeline, error) {
	var wrapper struct {
		Stages []bson.M `bson:"stages"`
	}
	if err := bson.UnmarshalExtJSON([]byte(`{"stages": `+s+`}`), false, &wrapper); err != nil {
		return nil, err
	}
	return storagemodels.Pipeline(wrapper.Stages), nil
}

func printDocuments(out io.Writer, docs []bson.M) error {
	for _, doc := range docs {
		b, err := bson.MarshalExtJSON(doc, false, false)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, string(b)); err != nil {
			return err
		}
	}
	return nil
}
