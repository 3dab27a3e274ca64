package writer

import (
	"testing"
	"time"

	"github.com/lamim/zipcrack/pkg/models"
)

// BenchmarkResultsWriter_WriteRecord benchmarks appending result lines
func BenchmarkResultsWriter_WriteRecord(b *testing.B) {
	sessionMgr := &SessionManager{sessionDir: b.TempDir()}

	writer, err := NewResultsWriter(sessionMgr, testLogger())
	if err != nil {
		b.Fatal(err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			b.Fatal(err)
		}
	}()

	record := models.ResultRecord{
		SessionID:  "bench",
		Archive:    "bench.zip",
		EntryName:  "secret.txt",
		Found:      true,
		Password:   "hunter2",
		Attempts:   123456,
		Charset:    "alnum",
		MinLength:  1,
		MaxLength:  6,
		Threads:    8,
		Duration:   time.Second,
		FinishedAt: time.Now(),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := writer.WriteRecord(record); err != nil {
			b.Fatal(err)
		}
	}
}
