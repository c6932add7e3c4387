package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/dzerkalo/internal/embedding"
)

// countingEmbedder records how many texts it has embedded.
type countingEmbedder struct {
	inner embedding.Embedder
	texts atomic.Int64
	err   error
}

func (c *countingEmbedder) Name() string { return "counting" }

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.texts.Add(int64(len(texts)))
	return c.inner.Embed(ctx, texts)
}

// fixedEmbedder returns a preset vector per text.
type fixedEmbedder map[string][]float32

func (f fixedEmbedder) Name() string { return "fixed" }

func (f fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func quietLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func newHashIndex() *Index {
	return New(embedding.NewHashEmbedder(256), WithLogger(quietLogger()))
}

func TestQuery_EmptyCorpus(t *testing.T) {
	ix := newHashIndex()

	hits, err := ix.Query(context.Background(), "任何问题", 3)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestQuery_NonPositiveK(t *testing.T) {
	ix := newHashIndex()
	require.NoError(t, ix.Append(context.Background(), []Record{{Text: "文本", Source: "a"}}))

	hits, err := ix.Query(context.Background(), "文本", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestQuery_ClampsK(t *testing.T) {
	ix := newHashIndex()
	require.NoError(t, ix.Append(context.Background(), []Record{
		{Text: "第一段", Source: "a"},
		{Text: "第二段", Source: "b"},
	}))

	hits, err := ix.Query(context.Background(), "第一段", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestQuery_Ranking(t *testing.T) {
	ix := New(fixedEmbedder{
		"near":  {1, 0},
		"mid":   {1, 1},
		"far":   {0, 1},
		"query": {1, 0},
	}, WithLogger(quietLogger()))
	require.NoError(t, ix.Append(context.Background(), []Record{
		{Text: "far", Source: "s"},
		{Text: "mid", Source: "s"},
		{Text: "near", Source: "s"},
	}))

	hits, err := ix.Query(context.Background(), "query", 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "near", hits[0].Record.Text)
	assert.Equal(t, "mid", hits[1].Record.Text)
	assert.Equal(t, "far", hits[2].Record.Text)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	assert.GreaterOrEqual(t, hits[1].Score, hits[2].Score)
}

func TestQuery_TiesKeepInsertionOrder(t *testing.T) {
	ix := New(fixedEmbedder{
		"a": {1, 0},
		"b": {2, 0},
		"c": {3, 0},
		"q": {1, 0},
	}, WithLogger(quietLogger()))
	require.NoError(t, ix.Append(context.Background(), []Record{
		{Text: "c", Source: "1"},
		{Text: "a", Source: "2"},
		{Text: "b", Source: "3"},
	}))

	hits, err := ix.Query(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, []string{hits[0].Record.Text, hits[1].Record.Text, hits[2].Record.Text})
}

func TestQuery_RelevantPassageFirst(t *testing.T) {
	ix := newHashIndex()
	require.NoError(t, ix.Append(context.Background(), []Record{
		{Text: "今天的天气非常晴朗，适合出门散步。", Source: "weather.txt"},
		{Text: "卷积神经网络广泛应用于图像识别任务。", Source: "ml.txt"},
		{Text: "这家餐厅的红烧肉味道很好。", Source: "food.txt"},
	}))

	hits, err := ix.Query(context.Background(), "神经网络如何识别图像", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "ml.txt", hits[0].Record.Source)
}

func TestAppend_ReembedsWholeCorpus(t *testing.T) {
	emb := &countingEmbedder{inner: embedding.NewHashEmbedder(32)}
	ix := New(emb, WithLogger(quietLogger()))

	require.NoError(t, ix.Append(context.Background(), []Record{{Text: "一", Source: "a"}, {Text: "二", Source: "a"}}))
	require.NoError(t, ix.Append(context.Background(), []Record{{Text: "三", Source: "b"}}))

	assert.Equal(t, int64(5), emb.texts.Load())
	assert.Equal(t, 3, ix.Len())
	assert.Equal(t, []string{"a", "b"}, ix.Sources())
}

func TestAppend_EmptyInputIsNoop(t *testing.T) {
	emb := &countingEmbedder{inner: embedding.NewHashEmbedder(32)}
	ix := New(emb, WithLogger(quietLogger()))

	require.NoError(t, ix.Append(context.Background(), nil))
	assert.Zero(t, emb.texts.Load())
	assert.Zero(t, ix.Len())
}

func TestAppend_RejectsEmptyText(t *testing.T) {
	ix := newHashIndex()

	err := ix.Append(context.Background(), []Record{{Text: "好", Source: "a"}, {Text: "  ", Source: "b"}})
	assert.ErrorIs(t, err, ErrEmptyRecord)
	assert.Zero(t, ix.Len())
}

func TestAppend_FailureKeepsPreviousSnapshot(t *testing.T) {
	emb := &countingEmbedder{inner: embedding.NewHashEmbedder(32)}
	ix := New(emb, WithLogger(quietLogger()))
	require.NoError(t, ix.Append(context.Background(), []Record{{Text: "旧", Source: "a"}}))

	emb.err = errors.New("model offline")
	require.Error(t, ix.Append(context.Background(), []Record{{Text: "新", Source: "b"}}))

	assert.Equal(t, 1, ix.Len())
	assert.Equal(t, []Record{{Text: "旧", Source: "a"}}, ix.Records())
}

func TestQuery_StaleSnapshot(t *testing.T) {
	ix := newHashIndex()
	ix.snap.Store(&snapshot{records: []Record{{Text: "x"}}})

	_, err := ix.Query(context.Background(), "x", 1)
	assert.ErrorIs(t, err, ErrStaleIndex)
}

func TestRecordsReturnsCopy(t *testing.T) {
	ix := newHashIndex()
	require.NoError(t, ix.Append(context.Background(), []Record{{Text: "原", Source: "a"}}))

	recs := ix.Records()
	recs[0].Text = "改"
	assert.Equal(t, "原", ix.Records()[0].Text)
}

func TestRetrieve(t *testing.T) {
	ix := newHashIndex()
	require.NoError(t, ix.Append(context.Background(), []Record{
		{Text: "机器翻译质量评估", Source: "a"},
		{Text: "红烧肉的做法", Source: "b"},
	}))

	texts, err := ix.Retrieve(context.Background(), "翻译质量", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"机器翻译质量评估"}, texts)
}

func TestConcurrentQueriesDuringAppend(t *testing.T) {
	ix := newHashIndex()
	ctx := context.Background()
	require.NoError(t, ix.Append(ctx, []Record{{Text: "初始", Source: "seed"}}))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	var failures atomic.Int32

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, err := ix.Query(ctx, "初始", 3); err != nil {
					failures.Add(1)
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		require.NoError(t, ix.Append(ctx, []Record{{Text: fmt.Sprintf("记录%d", i), Source: "loop"}}))
	}
	close(stop)
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.Equal(t, 21, ix.Len())
}

func TestExport(t *testing.T) {
	ix := newHashIndex()
	require.NoError(t, ix.Append(context.Background(), []Record{{Text: "<中文> & 文本", Source: "doc.txt"}}))

	var buf bytes.Buffer
	require.NoError(t, ix.Export(&buf, false))
	assert.Equal(t, `[{"text":"<中文> & 文本","source":"doc.txt"}]`+"\n", buf.String())

	buf.Reset()
	require.NoError(t, ix.Export(&buf, true))
	var withEmb []struct {
		Text      string    `json:"text"`
		Embedding []float32 `json:"embedding"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &withEmb))
	require.Len(t, withEmb, 1)
	assert.Len(t, withEmb[0].Embedding, 256)
}

func TestExport_EmptyCorpus(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newHashIndex().Export(&buf, false))
	assert.Equal(t, "[]\n", buf.String())
}

func TestSave(t *testing.T) {
	ix := newHashIndex()
	require.NoError(t, ix.Append(context.Background(), []Record{{Text: "保存", Source: "a"}}))

	path := filepath.Join(t.TempDir(), "nested", "kb.json")
	require.NoError(t, ix.Save(path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var recs []Record
	require.NoError(t, json.Unmarshal(data, &recs))
	assert.Equal(t, []Record{{Text: "保存", Source: "a"}}, recs)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestDefaultExportName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "knowledge_base_20240309_140507.json", DefaultExportName(ts))
}
