package segmentsource

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/lofield/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&models.Segment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		db.Exec("DELETE FROM broadcast_segments")
	})
	return db
}

func seed(t *testing.T, db *gorm.DB, segments ...models.Segment) {
	t.Helper()
	for _, seg := range segments {
		if err := db.Create(&seg).Error; err != nil {
			t.Fatalf("seed segment %s: %v", seg.ID, err)
		}
	}
}

func TestScheduledInWindow(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	seed(t, db,
		models.Segment{ID: "seg-late", FilePath: "/m/c.mp3", Type: models.SegmentTypeTalk,
			StartTime: base.Add(2 * time.Minute), EndTime: base.Add(5 * time.Minute), ShowID: "show-a"},
		models.Segment{ID: "seg-early", FilePath: "/m/a.mp3", Type: models.SegmentTypeMusic,
			StartTime: base, EndTime: base.Add(time.Minute), ShowID: "show-a"},
		models.Segment{ID: "seg-outside", FilePath: "/m/d.mp3", Type: models.SegmentTypeMusic,
			StartTime: base.Add(time.Hour), EndTime: base.Add(2 * time.Hour), ShowID: "show-a"},
		models.Segment{ID: "seg-unrendered", FilePath: "", Type: models.SegmentTypeMusic,
			StartTime: base.Add(time.Minute), EndTime: base.Add(2 * time.Minute), ShowID: "show-a"},
	)

	source := NewDBSource(db)
	got, err := source.ScheduledInWindow(context.Background(), base, base.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("ScheduledInWindow failed: %v", err)
	}

	// Rows without a rendered file and rows outside the window are excluded;
	// the rest come back ordered by start time.
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(got))
	}
	if got[0].ID != "seg-early" || got[1].ID != "seg-late" {
		t.Errorf("order = %s, %s; want seg-early, seg-late", got[0].ID, got[1].ID)
	}
}

func TestScheduledInWindowInclusiveBounds(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 7, 2, 9, 0, 0, 0, time.UTC)

	seed(t, db, models.Segment{ID: "seg-edge", FilePath: "/m/e.mp3", Type: models.SegmentTypeIdent,
		StartTime: base, EndTime: base.Add(10 * time.Second), ShowID: "show-b"})

	source := NewDBSource(db)
	got, err := source.ScheduledInWindow(context.Background(), base, base)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "seg-edge" {
		t.Errorf("point window on the boundary should match, got %v", got)
	}
}

func TestScheduledInWindowEmpty(t *testing.T) {
	db := testDB(t)
	source := NewDBSource(db)

	got, err := source.ScheduledInWindow(context.Background(),
		time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 3, 1, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no segments, got %d", len(got))
	}
}
