package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"inredd/internal/models"
)

// stubSizer reports fixed dimensions without touching pixel data.
type stubSizer struct {
	width  int
	height int
}

func (s stubSizer) Size(path string) (int, int, error) {
	return s.width, s.height, nil
}

// writeSplit materializes annotation files under root and touches the
// matching PNG for each, mirroring the on-disk dataset contract.
func writeSplit(t *testing.T, root, split string, files map[string]string) {
	t.Helper()

	annDir := filepath.Join(root, "annotations", split)
	imgDir := filepath.Join(root, "images", split)
	require.NoError(t, os.MkdirAll(annDir, 0755))
	require.NoError(t, os.MkdirAll(imgDir, 0755))

	for id, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(annDir, id+".json"), []byte(content), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(imgDir, id+".png"), []byte("png"), 0644))
	}
}

func loadOpts(root string, strict bool) Options {
	return Options{
		Root:   root,
		Split:  "train",
		Strict: strict,
		Sizer:  stubSizer{width: 2688, height: 1400},
	}
}

const dentateSingleTooth = `[{"tooth_id":11,"bbox":[10,20,30,40],"conditions":{"caries":true},"radiologist_id":"consensus","image_status":"dentate"}]`

func TestLoad_WorkedExample(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{"000001": dentateSingleTooth})

	store, err := Load(context.Background(), loadOpts(root, true))
	require.NoError(t, err)
	require.True(t, store.Complete())

	stats := store.Stats()
	require.Equal(t, 1, stats.TotalImages)
	require.Equal(t, 1, stats.TotalBBoxes)
	require.Equal(t, 1, stats.PerCondition["caries"])
	require.Equal(t, 1, stats.PerStatus["dentate"])

	rec, err := store.Get("000001")
	require.NoError(t, err)
	require.Equal(t, models.StatusDentate, rec.Status)
	require.Len(t, rec.Teeth, 1)
	require.Equal(t, 11, rec.Teeth[0].ToothID)
	require.Equal(t, models.BBox{X: 10, Y: 20, W: 30, H: 40}, rec.Teeth[0].BBox)
	require.Equal(t, models.RadiologistConsensus, rec.Teeth[0].Radiologist)

	// Sparse encoding: missing vocabulary names default to false.
	require.True(t, rec.Teeth[0].Conditions["caries"])
	require.False(t, rec.Teeth[0].Conditions["crown"])
	require.Len(t, rec.Teeth[0].Conditions, len(models.DefaultConditions))
}

func TestLoad_DeterministicOrder(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{
		"000003": dentateSingleTooth,
		"000001": dentateSingleTooth,
		"000002": dentateSingleTooth,
	})

	opts := loadOpts(root, true)
	opts.Workers = 4
	store, err := Load(context.Background(), opts)
	require.NoError(t, err)

	var ids []string
	for rec := range store.All() {
		ids = append(ids, rec.ImageID)
	}
	require.Equal(t, []string{"000001", "000002", "000003"}, ids)

	// Re-iterating yields the identical sequence.
	var again []string
	for rec := range store.All() {
		again = append(again, rec.ImageID)
	}
	require.Equal(t, ids, again)
}

func TestLoad_RepeatedLoadIdenticalStats(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{
		"000001": dentateSingleTooth,
		"000002": `[{"image_status":"edentulous"}]`,
	})

	first, err := Load(context.Background(), loadOpts(root, true))
	require.NoError(t, err)
	second, err := Load(context.Background(), loadOpts(root, true))
	require.NoError(t, err)

	require.Equal(t, first.Stats(), second.Stats())
}

func TestLoad_InvalidToothID(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{
		"000001": `[{"tooth_id":99,"bbox":[10,20,30,40],"conditions":{},"radiologist_id":"R1","image_status":"dentate"}]`,
	})

	_, err := Load(context.Background(), loadOpts(root, true))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Contains(t, schemaErr.Detail, "99")

	store, err := Load(context.Background(), loadOpts(root, false))
	require.NoError(t, err)
	require.Equal(t, 0, store.Len())

	report := store.Report()
	require.Equal(t, 1, report.Skipped)
	require.Len(t, report.Warnings, 1)
	require.Equal(t, "000001.json", report.Warnings[0].File)
	require.Contains(t, report.Warnings[0].Reason, "99")
}

func TestLoad_DuplicateToothRadiologistPair(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{
		"000001": `[
			{"tooth_id":11,"bbox":[10,20,30,40],"conditions":{},"radiologist_id":"consensus","image_status":"dentate"},
			{"tooth_id":11,"bbox":[50,60,30,40],"conditions":{},"radiologist_id":"consensus","image_status":"dentate"}
		]`,
	})

	_, err := Load(context.Background(), loadOpts(root, true))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Contains(t, schemaErr.Detail, "duplicate")
}

func TestLoad_SameToothDifferentRadiologist(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{
		"000001": `[
			{"tooth_id":11,"bbox":[10,20,30,40],"conditions":{},"radiologist_id":"R1","image_status":"dentate"},
			{"tooth_id":11,"bbox":[12,22,30,40],"conditions":{},"radiologist_id":"R2","image_status":"dentate"}
		]`,
	})

	store, err := Load(context.Background(), loadOpts(root, true))
	require.NoError(t, err)

	rec, err := store.Get("000001")
	require.NoError(t, err)
	require.Len(t, rec.Teeth, 2)
}

func TestLoad_MissingImage(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{"000001": dentateSingleTooth})
	require.NoError(t, os.Remove(filepath.Join(root, "images", "train", "000001.png")))

	_, err := Load(context.Background(), loadOpts(root, true))
	var missingErr *MissingImageError
	require.ErrorAs(t, err, &missingErr)
	require.Equal(t, "000001", missingErr.ImageID)

	store, err := Load(context.Background(), loadOpts(root, false))
	require.NoError(t, err)
	require.Equal(t, 0, store.Len())
	require.Equal(t, 1, store.Report().Skipped)
}

func TestLoad_Edentulous(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{
		"000001": `{"image_status":"edentulous"}`,
	})

	store, err := Load(context.Background(), loadOpts(root, true))
	require.NoError(t, err)

	rec, err := store.Get("000001")
	require.NoError(t, err)
	require.Equal(t, models.StatusEdentulous, rec.Status)
	require.Empty(t, rec.Teeth)
}

func TestLoad_EdentulousWithTeethRejected(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{
		"000001": `[{"tooth_id":11,"bbox":[10,20,30,40],"conditions":{},"radiologist_id":"R1","image_status":"edentulous"}]`,
	})

	_, err := Load(context.Background(), loadOpts(root, true))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Contains(t, schemaErr.Detail, "edentulous")
}

func TestLoad_UnknownCondition(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{
		"000001": `[{"tooth_id":11,"bbox":[10,20,30,40],"conditions":{"cavities":true},"radiologist_id":"R1","image_status":"dentate"}]`,
	})

	_, err := Load(context.Background(), loadOpts(root, true))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Contains(t, schemaErr.Detail, "cavities")
}

func TestLoad_ConditionVocabularyOverride(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{
		"000001": `[{"tooth_id":11,"bbox":[10,20,30,40],"conditions":{"cavities":true},"radiologist_id":"R1","image_status":"dentate"}]`,
	})

	opts := loadOpts(root, true)
	opts.Conditions = models.NewConditionSet([]string{"cavities"})
	store, err := Load(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 1, store.Stats().PerCondition["cavities"])
}

func TestLoad_BBoxOutOfBounds(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{"000001": dentateSingleTooth})

	opts := loadOpts(root, true)
	opts.Sizer = stubSizer{width: 35, height: 70}
	_, err := Load(context.Background(), opts)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Contains(t, schemaErr.Detail, "bounds")
}

func TestLoad_UnknownImageStatus(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{
		"000001": `[{"tooth_id":11,"bbox":[10,20,30,40],"conditions":{},"radiologist_id":"R1","image_status":"toothless"}]`,
	})

	_, err := Load(context.Background(), loadOpts(root, true))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Contains(t, schemaErr.Detail, "toothless")
}

func TestLoad_MissingImageStatus(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{
		"000001": `[{"tooth_id":11,"bbox":[10,20,30,40],"conditions":{},"radiologist_id":"R1"}]`,
	})

	_, err := Load(context.Background(), loadOpts(root, true))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Contains(t, schemaErr.Detail, "image_status")
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{
		"000001": `[{"tooth_id":11,"bbox":[10,20,30,40],"conditions":{},"radiologist_id":"R1","image_status":"dentate","score":0.9}]`,
	})

	_, err := Load(context.Background(), loadOpts(root, true))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestLoad_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{
		"000001": dentateSingleTooth,
		"000002": dentateSingleTooth,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store, err := Load(ctx, loadOpts(root, false))
	var partialErr *PartialLoadError
	require.ErrorAs(t, err, &partialErr)
	require.NotNil(t, store)
	require.False(t, store.Complete())

	// A truncated store refuses record access.
	_, err = store.Get("000001")
	require.ErrorAs(t, err, &partialErr)
	_, err = store.Records()
	require.ErrorAs(t, err, &partialErr)

	count := 0
	for range store.All() {
		count++
	}
	require.Equal(t, 0, count)
}

func TestLoad_NotFound(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{"000001": dentateSingleTooth})

	store, err := Load(context.Background(), loadOpts(root, true))
	require.NoError(t, err)

	_, err = store.Get("999999")
	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	require.Equal(t, "999999", notFoundErr.ImageID)
}

func TestLoad_MetadataPassthrough(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{"000001": dentateSingleTooth})
	csv := "image_id,device,kvp,mas,pixel_spacing\n000001,OP300,66,5.0,0.097\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "metadata.csv"), []byte(csv), 0644))

	store, err := Load(context.Background(), loadOpts(root, true))
	require.NoError(t, err)

	rec, err := store.Get("000001")
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"device":        "OP300",
		"kvp":           "66",
		"mas":           "5.0",
		"pixel_spacing": "0.097",
	}, rec.Metadata)
}

func TestLoad_ProgressCallback(t *testing.T) {
	root := t.TempDir()
	writeSplit(t, root, "train", map[string]string{
		"000001": dentateSingleTooth,
		"000002": dentateSingleTooth,
	})

	opts := loadOpts(root, true)
	opts.Workers = 1
	var seen []int
	opts.OnProgress = func(done, total int, imageID string) {
		require.Equal(t, 2, total)
		seen = append(seen, done)
	}

	_, err := Load(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, seen)
}

func TestLoad_MissingSplitDirectory(t *testing.T) {
	_, err := Load(context.Background(), loadOpts(t.TempDir(), false))
	require.Error(t, err)
}
