package sftp

const (
	DefaultConcurrentFiles = 5
	DefaultThreadsPerFile  = 16
	DefaultChunkSize       = 32 * 1024
)

// TransferConfig 定义传输配置
type TransferConfig struct {
	ConcurrentFiles int   // 同时传输的文件数
	ThreadsPerFile  int   // 单个文件的并发分块数
	ChunkSize       int64 // 分块大小
}

func DefaultConfig() TransferConfig {
	return TransferConfig{
		ConcurrentFiles: DefaultConcurrentFiles,
		ThreadsPerFile:  DefaultThreadsPerFile,
		ChunkSize:       DefaultChunkSize,
	}
}

// ProgressFunc 进度回调，n 为本次增量传输的字节数，必须并发安全
type ProgressFunc func(n int)
