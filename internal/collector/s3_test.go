package collector

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgsf-dashboard/logbooks/internal/domain"
	apperrors "github.com/lgsf-dashboard/logbooks/internal/errors"
)

type fakeS3 struct {
	pages   [][]types.Object
	objects map[string]string
	errs    map[string]error
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	page := 0
	if in.ContinuationToken != nil {
		page = 1
	}
	out := &s3.ListObjectsV2Output{Contents: f.pages[page]}
	if page+1 < len(f.pages) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String("next")
	} else {
		out.IsTruncated = aws.Bool(false)
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	body, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func object(key string, modified time.Time) types.Object {
	return types.Object{Key: aws.String(key), LastModified: aws.Time(modified)}
}

func newFakeRunReports() *fakeS3 {
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	return &fakeS3{
		pages: [][]types.Object{
			{object("run-reports/1.json", day), object("run-reports/3.json", day.AddDate(0, 0, 2))},
			{object("run-reports/2.json", day.AddDate(0, 0, 1)), object("run-reports/broken.json", day.AddDate(0, 0, 3))},
		},
		objects: map[string]string{
			"run-reports/1.json":      `{"scrapers":[{"council":"OLD","status":"success"}]}`,
			"run-reports/2.json":      `{"scrapers":[{"council":"ABC","status":"failed","runlog_s3_key":"runlogs/abc.json"},{"council":"DEF","status":"success"}]}`,
			"run-reports/3.json":      `{"scrapers":[{"council":"ABC","status":"success"}]}`,
			"run-reports/broken.json": `not json`,
			"runlogs/abc.json":        `{"error_message":"boom","duration_seconds":3.5}`,
			"runlogs/garbled.json":    `[1,2`,
		},
		errs: map[string]error{
			"runlogs/denied.json": errors.New("AccessDenied"),
		},
	}
}

func TestRunReportSource_Load(t *testing.T) {
	src := newRunReportSource(newFakeRunReports(), S3Config{Bucket: "b", Prefix: "run-reports/", ReportCount: 3}, nil)
	ctx := context.Background()

	_, err := src.ListCouncils(ctx)
	require.Error(t, err, "must load first")

	require.NoError(t, src.Load(ctx))

	// newest three by LastModified, with the broken one dropped
	reports := src.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, "ABC", reports[0].Scrapers[0].Council)
	assert.Len(t, reports[1].Scrapers, 2)

	ids, err := src.ListCouncils(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC", "DEF"}, ids)

	docs, err := src.FetchDocuments(ctx, "ABC")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	_, err = src.FetchDocuments(ctx, "OLD")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRunReportSource_ResolveDetail(t *testing.T) {
	src := newRunReportSource(newFakeRunReports(), S3Config{Bucket: "b"}, nil)
	ctx := context.Background()

	detail, err := src.ResolveDetail(ctx, "runlogs/abc.json")
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "boom", *detail.ErrorMessage)
	assert.Equal(t, 3.5, *detail.DurationSeconds)
	assert.Nil(t, detail.EndTime)

	detail, err = src.ResolveDetail(ctx, "runlogs/missing.json")
	require.NoError(t, err)
	assert.Nil(t, detail)

	_, err = src.ResolveDetail(ctx, "runlogs/denied.json")
	assert.True(t, apperrors.IsFetchError(err))

	_, err = src.ResolveDetail(ctx, "runlogs/garbled.json")
	assert.True(t, apperrors.IsParseError(err))
}

func TestRunReportSource_LoadKeepsReportWithMalformedEntry(t *testing.T) {
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	fake := &fakeS3{
		pages: [][]types.Object{{object("run-reports/1.json", day)}},
		objects: map[string]string{
			"run-reports/1.json": `{"scrapers":[
				{"council":"A","status":"ok"},
				{"council":"B","status":"failed","status_code":"429"},
				{"status":false}]}`,
		},
	}
	src := newRunReportSource(fake, S3Config{Bucket: "b", Prefix: "run-reports/", ReportCount: 3}, nil)
	ctx := context.Background()
	require.NoError(t, src.Load(ctx))

	reports := src.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Unattributed)

	ids, err := src.ListCouncils(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ids)

	docs, err := src.FetchDocuments(ctx, "A")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Len(t, docs[0].RecordsFor("A"), 1)

	docs, err = src.FetchDocuments(ctx, "B")
	require.NoError(t, err)
	records := docs[0].RecordsFor("B")
	require.Len(t, records, 1)
	assert.IsType(t, domain.MalformedRecord{}, records[0])
}
