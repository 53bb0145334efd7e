package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/activecm/flowguard/parser"
	"github.com/activecm/flowguard/parser/files"
	"github.com/activecm/flowguard/pkg/classify"
	"github.com/activecm/flowguard/pkg/flow"
	"github.com/activecm/flowguard/pkg/prediction"
	"github.com/activecm/flowguard/resources"
	"github.com/activecm/flowguard/util"
	"github.com/globalsign/mgo"
	"github.com/olekukonko/tablewriter"
	"github.com/pbnjay/memory"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// kindParse reports log lines and files which could not be read
const kindParse = "parse"

type (
	// flowClassifier scores a single flow record
	flowClassifier interface {
		Classify(rec *flow.Record) (classify.Result, error)
	}

	// classifiedFlow is a log entry together with its classification.
	// Err holds the parse or classification failure.
	classifiedFlow struct {
		Path   string
		Line   int
		Record *flow.Record
		Result classify.Result
		Err    error
	}

	// fileTally counts the outcomes of the entries of one log file
	fileTally struct {
		Flows    int64
		Rejected int64
	}

	// logSummary tallies a classification run
	logSummary struct {
		Flows      int64
		Classified int64
		Malicious  int64
		Labels     map[string]int64
		Errors     map[string]int64
		Files      map[string]*fileTally
	}
)

func init() {
	command := cli.Command{
		Name:      "classify-logs",
		Usage:     "Classify the flows of Zeek conn logs",
		ArgsUsage: "<files or directories...>",
		Flags: []cli.Flag{
			configFlag,
			humanFlag,
			delimFlag,
			threadFlag,
			cli.BoolFlag{
				Name:  "persist, p",
				Usage: "Store the predictions in MongoDB",
			},
			databaseFlag,
			cli.BoolFlag{
				Name:  "force, f",
				Usage: "Classify files which were already stored in the database",
			},
			cli.BoolFlag{
				Name:  "summary, s",
				Usage: "Only print the summary",
			},
		},
		Action: classifyLogs,
	}

	bootstrapCommands(command)
}

func classifyLogs(c *cli.Context) error {
	if len(c.Args()) == 0 {
		return cli.NewExitError("Specify the Zeek logs or directories to classify", -1)
	}

	res := resources.InitResources(c.String("config"))
	defer res.Close()

	conf := res.Config.S.Batch
	workers := threads(c.Int("threads"), conf.Threads)
	persist := c.Bool("persist") || conf.Persist
	targetDB := conf.Database
	if c.String("database") != "" {
		targetDB = c.String("database")
	}

	paths := files.GatherLogFiles(c.Args(), res.Log)

	var indexed []*files.IndexedFile
	if persist {
		if err := res.ConnectDB(); err != nil {
			return cli.NewExitError("Failed to connect to database: "+err.Error(), -1)
		}
		var err error
		indexed, err = prepareDatabase(res, targetDB, paths, workers, c.Bool("force"))
		if err != nil {
			return cli.NewExitError(err.Error(), -1)
		}
		if len(indexed) == 0 && len(paths) > 0 {
			return cli.NewExitError("All files have already been classified into "+targetDB+", use --force to classify them again", -1)
		}
		paths = paths[:0]
		for _, file := range indexed {
			paths = append(paths, file.Path)
		}
	}

	if len(paths) == 0 {
		return cli.NewExitError("No conn logs were found to classify", -1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	reader := parser.NewConnReader(workers, parser.NewFilter(res.Config.R.Filtering), res.Log)
	flows := reader.Read(ctx, paths, importBuffer(conf.ImportBuffer))

	var predictions []*prediction.Input
	var rows [][]string
	emit := func(cf classifiedFlow) {
		if persist && cf.Err == nil {
			predictions = append(predictions, &prediction.Input{
				UID:         cf.Record.UID,
				Source:      cf.Record.Source,
				Destination: cf.Record.Destination,
				TimeStamp:   cf.Record.TimeStamp,
				Label:       cf.Result.Label,
				Confidence:  cf.Result.Confidence,
				Malicious:   cf.Result.Malicious,
			})
		}
		if c.Bool("summary") {
			return
		}
		if c.Bool("human-readable") {
			rows = append(rows, flowRow(cf))
			return
		}
		fmt.Println(strings.Join(flowRow(cf), c.String("delimiter")))
	}

	if !c.Bool("summary") && !c.Bool("human-readable") {
		fmt.Println(strings.Join(flowHeader, c.String("delimiter")))
	}

	summary := classifyFlows(res.Service, flows, workers, emit)
	if ctx.Err() != nil {
		return cli.NewExitError("Classification interrupted", -1)
	}

	if c.Bool("human-readable") && !c.Bool("summary") {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader(flowHeader)
		table.AppendBulk(rows)
		table.Render()
	}

	res.Log.WithFields(log.Fields{
		"flows":      summary.Flows,
		"classified": summary.Classified,
		"malicious":  summary.Malicious,
		"filtered":   reader.Filtered(),
		"elapsed":    util.FormatDuration(time.Since(start)),
	}).Info("Finished classifying conn logs")

	// the summary goes to stderr so that csv output stays machine readable
	out := io.Writer(os.Stderr)
	if c.Bool("human-readable") || c.Bool("summary") {
		out = os.Stdout
	}
	printSummary(out, summary, reader.Filtered())

	if persist {
		if err := storePredictions(res, targetDB, workers, predictions, indexed, summary); err != nil {
			return cli.NewExitError(err.Error(), -1)
		}
	}
	return nil
}

// classifyFlows classifies flows with the given number of workers. emit and
// the returned summary are only touched by a single goroutine.
func classifyFlows(service flowClassifier, flows <-chan parser.Flow, workers int, emit func(classifiedFlow)) *logSummary {
	results := make(chan classifiedFlow, workers)

	workerWG := new(sync.WaitGroup)
	for w := 0; w < util.Max(1, workers); w++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			for entry := range flows {
				cf := classifiedFlow{Path: entry.Path, Line: entry.Line, Record: entry.Record, Err: entry.Err}
				if cf.Err == nil {
					cf.Result, cf.Err = service.Classify(entry.Record)
				}
				results <- cf
			}
		}()
	}

	go func() {
		workerWG.Wait()
		close(results)
	}()

	summary := &logSummary{
		Labels: make(map[string]int64),
		Errors: make(map[string]int64),
		Files:  make(map[string]*fileTally),
	}
	for cf := range results {
		summary.add(cf)
		if emit != nil {
			emit(cf)
		}
	}
	return summary
}

func (s *logSummary) add(cf classifiedFlow) {
	tally, ok := s.Files[cf.Path]
	if !ok {
		tally = new(fileTally)
		s.Files[cf.Path] = tally
	}

	// an unreadable file is not a flow
	var parseErr *parser.ParseError
	if errors.As(cf.Err, &parseErr) && parseErr.Line == 0 {
		s.Errors[kindParse]++
		return
	}

	s.Flows++
	tally.Flows++
	if cf.Err != nil {
		tally.Rejected++
		s.Errors[errorKind(cf.Err)]++
		return
	}

	s.Classified++
	s.Labels[cf.Result.Label]++
	if cf.Result.Malicious {
		s.Malicious++
	}
}

// errorKind maps parse failures to kindParse and every other error to its
// classification error kind
func errorKind(err error) string {
	var parseErr *parser.ParseError
	if errors.As(err, &parseErr) {
		return kindParse
	}
	return classify.KindOf(err)
}

var flowHeader = []string{"Path", "Line", "UID", "Source", "Destination", "Label", "Confidence", "Malicious", "Error"}

func flowRow(cf classifiedFlow) []string {
	row := []string{cf.Path, i(int64(cf.Line)), "", "", "", "", "", "", ""}
	if cf.Record != nil {
		row[2], row[3], row[4] = cf.Record.UID, cf.Record.Source, cf.Record.Destination
	}
	if cf.Err != nil {
		row[8] = errorKind(cf.Err) + ": " + cf.Err.Error()
		return row
	}
	row[5], row[6], row[7] = cf.Result.Label, p(cf.Result.Confidence), fmt.Sprint(cf.Result.Malicious)
	return row
}

// printSummary writes the per label and per error kind counts of a run
func printSummary(out io.Writer, summary *logSummary, filtered int64) {
	fmt.Fprintf(out, "\n[+] Classified %d of %d flows, %d malicious, %d filtered\n",
		summary.Classified, summary.Flows, summary.Malicious, filtered)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Label", "Flows"})
	for _, label := range sortedKeys(summary.Labels) {
		table.Append([]string{label, i(summary.Labels[label])})
	}
	table.Render()

	if len(summary.Errors) == 0 {
		return
	}
	table = tablewriter.NewWriter(out)
	table.SetHeader([]string{"Error", "Count"})
	for _, kind := range sortedKeys(summary.Errors) {
		table.Append([]string{kind, i(summary.Errors[kind])})
	}
	table.Render()
}

// sortedKeys orders the keys of counts by descending count, then by name
func sortedKeys(counts map[string]int64) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(a, b int) bool {
		if counts[keys[a]] != counts[keys[b]] {
			return counts[keys[a]] > counts[keys[b]]
		}
		return keys[a] < keys[b]
	})
	return keys
}

// importBuffer sizes the channel between the log readers and the
// classification workers. Unless configured it takes roughly 1/64th of the
// system memory, assuming a kilobyte per buffered flow.
func importBuffer(configured int) int {
	if configured > 0 {
		return configured
	}
	const (
		minBuffer = 1 << 10
		maxBuffer = 1 << 20
	)
	buffer := int(memory.TotalMemory() / 64 / 1024)
	if buffer < minBuffer {
		return minBuffer
	}
	if buffer > maxBuffer {
		return maxBuffer
	}
	return buffer
}

// prepareDatabase registers targetDB in the metadatabase and returns the
// files which still have to be classified into it
func prepareDatabase(res *resources.Resources, targetDB string, paths []string, workers int, force bool) ([]*files.IndexedFile, error) {
	indexed := files.IndexFiles(paths, workers, res.Log)

	_, err := res.MetaDB.GetDBMetaInfo(targetDB)
	switch {
	case err == mgo.ErrNotFound:
		if err := res.MetaDB.AddNewDB(targetDB); err != nil {
			return nil, fmt.Errorf("could not register database %s: %w", targetDB, err)
		}
	case err != nil:
		return nil, fmt.Errorf("could not look up database %s: %w", targetDB, err)
	default:
		compatible, err := res.MetaDB.CheckCompatible(targetDB)
		if err != nil {
			return nil, fmt.Errorf("could not check the version of database %s: %w", targetDB, err)
		}
		if !compatible {
			return nil, fmt.Errorf("database %s was written by an incompatible version of FlowGuard", targetDB)
		}
	}

	if force {
		for _, file := range indexed {
			file.Database = targetDB
		}
		return indexed, nil
	}
	return parser.RemoveClassifiedFiles(indexed, res.MetaDB, targetDB, res.Log), nil
}

// storePredictions upserts the predictions into targetDB and records the
// classified files in the metadatabase
func storePredictions(res *resources.Resources, targetDB string, workers int,
	predictions []*prediction.Input, indexed []*files.IndexedFile, summary *logSummary) error {

	res.DB.SelectDB(targetDB)
	model := filepath.Base(res.Config.S.Model.ClassifierPath)

	if err := res.MetaDB.MarkDBClassified(targetDB, false, model); err != nil {
		return fmt.Errorf("could not update database %s: %w", targetDB, err)
	}

	repo := prediction.NewMongoRepository(res.DB, res.Config, res.Log, workers, true)
	if err := repo.CreateIndexes(); err != nil {
		return fmt.Errorf("could not create the prediction collection: %w", err)
	}

	fmt.Printf("\n[+] Storing %d predictions in %s\n", len(predictions), targetDB)
	if failed := repo.Upsert(predictions); failed > 0 {
		return fmt.Errorf("%d bulk writes of predictions to %s failed", failed, targetDB)
	}

	now := time.Now()
	for _, file := range indexed {
		if tally, ok := summary.Files[file.Path]; ok {
			file.Flows = tally.Flows
			file.Rejected = tally.Rejected
		}
		file.ClassifiedAt = now
	}
	if err := res.MetaDB.AddClassifiedFiles(indexed); err != nil {
		return fmt.Errorf("could not record the classified files: %w", err)
	}

	return res.MetaDB.MarkDBClassified(targetDB, true, model)
}
