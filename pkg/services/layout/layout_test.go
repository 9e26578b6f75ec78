package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellyoshaqiqie17/reimbursement/pkg/models"
)

func testDetection(text string, centerY, leftX float64) *models.Detection {
	return &models.Detection{
		Text:       text,
		Confidence: 0.95,
		Quad: models.Quad{
			{X: leftX, Y: centerY - 10},
			{X: leftX + 100, Y: centerY - 10},
			{X: leftX + 100, Y: centerY + 10},
			{X: leftX, Y: centerY + 10},
		},
	}
}

func TestNormalizeBbox(t *testing.T) {
	r := NewReconstructor(nil, 20)
	want := models.Quad{
		{X: 10, Y: 20},
		{X: 110, Y: 20},
		{X: 110, Y: 40},
		{X: 10, Y: 40},
	}

	t.Run("point rows", func(t *testing.T) {
		got := r.NormalizeBbox([][]float64{{10, 20}, {110, 20}, {110, 40}, {10, 40}})
		assert.Equal(t, want, got)
	})

	t.Run("flat eight numbers", func(t *testing.T) {
		got := r.NormalizeBbox([]float64{10, 20, 110, 20, 110, 40, 10, 40})
		assert.Equal(t, want, got)
	})

	t.Run("axis-aligned box", func(t *testing.T) {
		got := r.NormalizeBbox([]float64{10, 20, 110, 40})
		assert.Equal(t, want, got)
	})

	t.Run("loose point list", func(t *testing.T) {
		got := r.NormalizeBbox([]any{
			[]any{10.0, 20.0},
			[]any{110.0, 20.0},
			[]any{110.0, 40.0},
			[]any{10.0, 40.0},
		})
		assert.Equal(t, want, got)
	})

	t.Run("loose flat numbers", func(t *testing.T) {
		got := r.NormalizeBbox([]any{10.0, 20.0, 110.0, 20.0, 110.0, 40.0, 10.0, 40.0})
		assert.Equal(t, want, got)
	})

	t.Run("integer coordinates", func(t *testing.T) {
		got := r.NormalizeBbox([]int{10, 20, 110, 40})
		assert.Equal(t, want, got)
	})

	t.Run("garbage degrades to zero quad", func(t *testing.T) {
		assert.Equal(t, models.Quad{}, r.NormalizeBbox("not a bbox"))
		assert.Equal(t, models.Quad{}, r.NormalizeBbox(nil))
		assert.Equal(t, models.Quad{}, r.NormalizeBbox([]float64{1, 2, 3}))
	})
}

func TestDetectionGeometry(t *testing.T) {
	d := testDetection("x", 30, 10)
	assert.Equal(t, 30.0, d.CenterY())
	assert.Equal(t, 60.0, d.CenterX())
	assert.Equal(t, 10.0, d.LeftX())
	assert.Equal(t, 110.0, d.RightX())
}

func TestOrderByReadingPosition(t *testing.T) {
	r := NewReconstructor(nil, 20)
	detections := []*models.Detection{
		testDetection("third", 90, 0),
		testDetection("first", 10, 0),
		testDetection("second", 50, 0),
	}

	ordered := r.OrderByReadingPosition(detections)

	require.Len(t, ordered, 3)
	assert.Equal(t, "first", ordered[0].Text)
	assert.Equal(t, "second", ordered[1].Text)
	assert.Equal(t, "third", ordered[2].Text)
	for i, d := range ordered {
		assert.Equal(t, i, d.LineIndex)
	}
}

func TestGroupIntoLines(t *testing.T) {
	r := NewReconstructor(nil, 20)

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, r.GroupIntoLines(nil))
	})

	t.Run("threshold clustering", func(t *testing.T) {
		// 10 and 15 are within the 20px threshold of the first anchor;
		// 50 starts a new line.
		detections := []*models.Detection{
			testDetection("a", 10, 200),
			testDetection("b", 15, 0),
			testDetection("c", 50, 0),
		}
		lines := r.GroupIntoLines(detections)

		require.Len(t, lines, 2)
		require.Len(t, lines[0], 2)
		require.Len(t, lines[1], 1)

		// Each line is sorted left to right.
		assert.Equal(t, "b", lines[0][0].Text)
		assert.Equal(t, "a", lines[0][1].Text)
		assert.Equal(t, "c", lines[1][0].Text)
	})

	t.Run("single detection flushes", func(t *testing.T) {
		lines := r.GroupIntoLines([]*models.Detection{testDetection("only", 10, 0)})
		require.Len(t, lines, 1)
		assert.Equal(t, "only", lines[0][0].Text)
	})
}

func TestBuildDetections(t *testing.T) {
	r := NewReconstructor(nil, 20)
	raws := []models.RawDetection{
		{Text: "  hello  ", Confidence: 0.9, Bounds: []float64{0, 0, 10, 10}},
		{Text: "world", Confidence: 0.8, Bounds: "garbage"},
	}

	detections := r.BuildDetections(raws)

	require.Len(t, detections, 2)
	assert.Equal(t, "hello", detections[0].Text)
	assert.Equal(t, 0.9, detections[0].Confidence)
	assert.Equal(t, models.Quad{}, detections[1].Quad)
}

func TestFullText(t *testing.T) {
	r := NewReconstructor(nil, 20)
	detections := []*models.Detection{
		testDetection("INDOMARET", 10, 0),
		testDetection("Total", 50, 0),
		testDetection("Rp 55.000", 50, 200),
	}
	assert.Equal(t, "INDOMARET\nTotal Rp 55.000", r.FullText(detections))
}

func TestAverageConfidence(t *testing.T) {
	assert.Equal(t, 0.0, AverageConfidence(nil))

	detections := []*models.Detection{
		{Confidence: 0.8},
		{Confidence: 0.6},
	}
	assert.InDelta(t, 0.7, AverageConfidence(detections), 1e-9)
}
