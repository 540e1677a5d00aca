package v1

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	dataDir        string
	dimension      int
	trees          int
	embedderURL    string
	embedderModel  string
	scorerURL      string
	scorerModel    string
	candidatePool  int
	configFile     string
	remoteDisabled bool
}

// WithDataDir sets the directory holding tenant artifacts.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		c.dataDir = dir
	}
}

// WithDimension sets the embedding dimension.
func WithDimension(dim int) Option {
	return func(c *clientConfig) {
		c.dimension = dim
	}
}

// WithTrees sets the number of trees per vector index.
func WithTrees(n int) Option {
	return func(c *clientConfig) {
		c.trees = n
	}
}

// WithEmbedder points the client at an embedding model server instead
// of the offline hashing backend.
func WithEmbedder(baseURL, model string) Option {
	return func(c *clientConfig) {
		c.embedderURL = baseURL
		c.embedderModel = model
	}
}

// WithScorer points the client at a rerank model server instead of the
// offline lexical backend.
func WithScorer(baseURL, model string) Option {
	return func(c *clientConfig) {
		c.scorerURL = baseURL
		c.scorerModel = model
	}
}

// WithCandidatePool overrides the stage-one candidate pool size.
func WithCandidatePool(n int) Option {
	return func(c *clientConfig) {
		c.candidatePool = n
	}
}

// WithConfigFile loads the full configuration from a YAML file; other
// options are applied on top.
func WithConfigFile(path string) Option {
	return func(c *clientConfig) {
		c.configFile = path
	}
}

// WithoutRemoteCache disables the remote artifact mirror even when the
// loaded configuration enables it.
func WithoutRemoteCache() Option {
	return func(c *clientConfig) {
		c.remoteDisabled = true
	}
}
