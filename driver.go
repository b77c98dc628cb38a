package drover

import (
	"fmt"
	"io"
	"os"
	"time"

	humanize "github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/crispml/drover/booster"
	"github.com/crispml/drover/internal/pkg/drocluster"
	"github.com/crispml/drover/internal/pkg/drofs"
	"github.com/crispml/drover/internal/pkg/droframe"
)

// scratchModelPath is the fixed local staging path for the serialized
// model before it is copied to the configured destination. The path is
// not unique per invocation, so concurrent runs on one host race on it.
const scratchModelPath = "/tmp/tmp.model"

// numBoostRounds is the number of boosting rounds run per training job.
const numBoostRounds = 100

// Driver controls the execution of a training pipeline
type Driver struct {
	config *config
}

// config configures a Driver's execution of training jobs
type config struct {
	GCPProject        string
	TrainFiles        string
	ModelFile         string
	NumWorkers        int
	ThreadsPerWorker  int
	DoWait            bool
	Parquet           bool
	SchedulerEndpoint string
}

func newConfig() *config {
	loadConfig() // Load viper config from settings file(s) and environment
	return &config{
		GCPProject:        viper.GetString("gcp_project"),
		TrainFiles:        viper.GetString("train_files"),
		ModelFile:         viper.GetString("model_file"),
		NumWorkers:        viper.GetInt("num_worker"),
		ThreadsPerWorker:  viper.GetInt("threads_per_worker"),
		DoWait:            viper.GetBool("do_wait"),
		Parquet:           viper.GetBool("parquet"),
		SchedulerEndpoint: viper.GetString("scheduler_endpoint"),
	}
}

// Option allows configuration of a Driver
type Option func(*config)

// NewDriver creates a new Driver with the provided optional configuration
func NewDriver(options ...Option) *Driver {
	log.SetLevel(log.DebugLevel)

	c := newConfig()
	for _, f := range options {
		f(c)
	}

	d := &Driver{config: c}
	log.Debugf("Loaded config: %#v", c)

	return d
}

// WithGCPProject sets the cloud project used for storage auth
func WithGCPProject(project string) Option {
	return func(c *config) {
		c.GCPProject = project
	}
}

// WithTrainFiles sets the input path or glob of the Driver
func WithTrainFiles(pathGlob string) Option {
	return func(c *config) {
		c.TrainFiles = pathGlob
	}
}

// WithModelFile sets the output model path of the Driver
func WithModelFile(path string) Option {
	return func(c *config) {
		c.ModelFile = path
	}
}

// WithWorkers sets the worker count and threads per worker. Each worker
// is bound to one accelerator device.
func WithWorkers(numWorkers, threadsPerWorker int) Option {
	return func(c *config) {
		c.NumWorkers = numWorkers
		c.ThreadsPerWorker = threadsPerWorker
	}
}

// WithDoWait forces eager materialization of the input table before
// matrix construction.
func WithDoWait(doWait bool) Option {
	return func(c *config) {
		c.DoWait = doWait
	}
}

// WithParquet selects the columnar input format instead of delimited text
func WithParquet(parquet bool) Option {
	return func(c *config) {
		c.Parquet = parquet
	}
}

// WithSchedulerEndpoint overrides the discovered scheduler endpoint
func WithSchedulerEndpoint(endpoint string) Option {
	return func(c *config) {
		c.SchedulerEndpoint = endpoint
	}
}

// trainingParams is the fixed hyperparameter set every pipeline run
// trains with.
func trainingParams() booster.Params {
	return booster.Params{
		Verbosity:      2,
		LearningRate:   0.1,
		MaxDepth:       8,
		Objective:      booster.ObjectiveSquaredError,
		Subsample:      0.5,
		Gamma:          0.9,
		Lambda:         1,
		MinChildWeight: 1,
		TreeMethod:     booster.TreeMethodHist,
		Threads:        1,
	}
}

// run executes the pipeline: discover the scheduler, start the cluster,
// load the input table, build the quantized matrix, train, persist.
func (d *Driver) run() error {
	drofs.SetGCSProject(d.config.GCPProject)
	inputFS := drofs.InferFilesystem(d.config.TrainFiles)
	modelFS := drofs.InferFilesystem(d.config.ModelFile)
	log.Info("Remote filesystem handle created")

	endpoint := d.config.SchedulerEndpoint
	if endpoint == "" {
		ip, discovered, err := drocluster.DiscoverScheduler()
		if err != nil {
			return err
		}
		endpoint = discovered
		log.Infof("Scheduler will bind %s on host IP %s", endpoint, ip)
	}

	log.Info("Local device cluster is being formed")
	cluster, err := drocluster.Start(endpoint, d.config.NumWorkers, d.config.ThreadsPerWorker)
	if err != nil {
		return err
	}
	defer cluster.Close()

	client := drocluster.NewClient(cluster)
	defer client.Close()

	log.Info("Calling main training function")
	return d.trainWithQuantileMatrix(client, inputFS, modelFS)
}

// trainWithQuantileMatrix loads the input table, converts it to a
// quantized matrix, trains and persists the model. The quantized matrix
// is preferred over a plain one on device-bound workers since it reduces
// memory overhead; it can not be used for anything else than training.
func (d *Driver) trainWithQuantileMatrix(client *drocluster.Client, inputFS, modelFS drofs.FileSystem) error {
	schema := droframe.TrainingSchema()

	var frame *droframe.Frame
	var err error
	if d.config.Parquet {
		frame, err = droframe.ReadParquet(inputFS, d.config.TrainFiles, schema)
	} else {
		frame, err = droframe.ReadCSV(inputFS, d.config.TrainFiles, schema)
	}
	if err != nil {
		return err
	}
	log.Info("Input files are read")

	X := frame.Features()
	y := frame.Label()

	if d.config.DoWait {
		frameFutures := frame.Persist(client)
		featureFutures := X.Persist(client)
		if err := droframe.Wait(client, frameFutures); err != nil {
			return err
		}
		if err := droframe.Wait(client, featureFutures); err != nil {
			return err
		}
		log.Info("Long waited but the data is ready now")
	}

	start := time.Now()
	dtrain, err := booster.NewQuantileDMatrix(client, X, y)
	if err != nil {
		return err
	}
	log.Infof("QuantileDMatrix is formed in %s (%s resident)",
		time.Since(start), humanize.Bytes(dtrain.MemSize()))

	// Drop the source table before training begins so worker memory is
	// bounded by the quantized matrix alone
	frame.Release()

	start = time.Now()
	output, err := booster.Train(client, trainingParams(), dtrain, numBoostRounds,
		[]booster.EvalSet{{Matrix: dtrain, Name: "train"}})
	if err != nil {
		return err
	}
	log.Infof("Training is completed in %s", time.Since(start))
	log.Debugf("Training evaluation history: %v", output.History)

	dtrain.Release()

	if err := output.Booster.SaveModel(scratchModelPath); err != nil {
		return err
	}
	if err := uploadModel(modelFS, scratchModelPath, d.config.ModelFile); err != nil {
		return err
	}
	log.Infof("Model saved here: %s", d.config.ModelFile)

	return nil
}

// uploadModel copies the staged model file to the destination filesystem.
// The two writes are not atomic: a failed upload leaves the local staging
// file behind and the destination absent or partial.
func uploadModel(fs drofs.FileSystem, localPath, remotePath string) error {
	reader, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	writer, err := fs.OpenWriter(remotePath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(writer, reader); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

// Main parses the command line, resolves the configuration and starts
// the Driver. Any pipeline error is fatal and exits non-zero.
func (d *Driver) Main() {
	flags := pflag.NewFlagSet("drover", pflag.ExitOnError)
	flags.String("gcp-project", d.config.GCPProject, "user gcp project")
	flags.String("train-files", d.config.TrainFiles, "training files, local or remote")
	flags.String("model-file", d.config.ModelFile, "destination path for the trained model")
	// "num--worker" is how the flag shipped; the double hyphen is kept so
	// existing invocations stay valid. It resolves to the num_worker key.
	flags.Int("num--worker", d.config.NumWorkers, "num of workers")
	flags.Int("threads-per-worker", d.config.ThreadsPerWorker, "num of threads per worker")
	flags.Bool("do-wait", d.config.DoWait, "persist and wait for input data before training")
	flags.Bool("parquet", d.config.Parquet, "parquet files are used")
	flags.Parse(os.Args[1:])

	viper.BindPFlag("gcp_project", flags.Lookup("gcp-project"))
	viper.BindPFlag("train_files", flags.Lookup("train-files"))
	viper.BindPFlag("model_file", flags.Lookup("model-file"))
	viper.BindPFlag("num_worker", flags.Lookup("num--worker"))
	viper.BindPFlag("threads_per_worker", flags.Lookup("threads-per-worker"))
	viper.BindPFlag("do_wait", flags.Lookup("do-wait"))
	viper.BindPFlag("parquet", flags.Lookup("parquet"))

	d.config = newConfig()
	log.Info("Arguments parsed")
	log.Debugf("Resolved config: %#v", d.config)

	start := time.Now()
	if err := d.run(); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Pipeline Execution Time: %s\n", time.Since(start))
}
