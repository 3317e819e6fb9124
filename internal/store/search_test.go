package store

import "testing"

func TestSearchRankOrdering(t *testing.T) {
	db, _ := OpenMemory()
	defer db.Close()

	dense := testDoc("20240101120000-aaaaaaa", "docker", "/dev/docker", "2024-01-01T12:00:00Z")
	dense.Content = "docker compose. docker volumes. docker networks."
	sparse := testDoc("20240101120000-bbbbbbb", "misc", "/dev/misc", "2024-01-01T12:00:00Z")
	sparse.Content = "one passing mention of docker in a longer note about other tooling and various unrelated topics"

	if _, err := db.SyncDocuments([]Document{sparse, dense}); err != nil {
		t.Fatalf("SyncDocuments: %v", err)
	}

	rows, err := db.Search(`"docker"`, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("results = %d, want 2", len(rows))
	}
	if rows[0].DocID != dense.ID {
		t.Errorf("best-ranked doc = %s, want %s", rows[0].DocID, dense.ID)
	}
	if rows[0].Rank > rows[1].Rank {
		t.Errorf("rank not ascending: %f then %f", rows[0].Rank, rows[1].Rank)
	}
}

func TestSearchJoinsRegistryFields(t *testing.T) {
	db, _ := OpenMemory()
	defer db.Close()

	doc := testDoc("20240101120000-abcdefg", "Meeting notes", "/work/meetings/standup", "2024-02-10T08:00:00Z")
	doc.Sections = []Section{{ID: doc.ID + "::h2::3", Content: "## Decisions\nretrospective cadence weekly"}}
	if err := db.IndexDocument(doc); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	rows, err := db.Search(`"retrospective"`, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("results = %d, want 1", len(rows))
	}
	r := rows[0]
	if r.BlockID != doc.ID+"::h2::3" || r.DocID != doc.ID {
		t.Errorf("ids = %s / %s", r.BlockID, r.DocID)
	}
	if r.Title != "Meeting notes" || r.HPath != "/work/meetings/standup" {
		t.Errorf("registry fields = %q / %q", r.Title, r.HPath)
	}
	if r.UpdatedAt != "2024-02-10T08:00:00Z" {
		t.Errorf("updated = %q", r.UpdatedAt)
	}
}

func TestSearchStemsLatinTokens(t *testing.T) {
	db, _ := OpenMemory()
	defer db.Close()

	doc := testDoc("20240101120000-abcdefg", "ci", "/dev/ci", "2024-01-01T12:00:00Z")
	doc.Content = "pipelines keep failing during deployments"
	if err := db.IndexDocument(doc); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	rows, err := db.Search(`"failure" OR "deployment"`, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rows) == 0 {
		t.Error("stemmed query found nothing")
	}
}

func TestSearchCJKTokens(t *testing.T) {
	db, _ := OpenMemory()
	defer db.Close()

	// Punctuation splits CJK runs into separate tokens.
	doc := testDoc("20240101120000-abcdefg", "简历", "/个人/简历", "2024-01-01T12:00:00Z")
	doc.Content = "更新了 简历 和 工作经历。"
	if err := db.IndexDocument(doc); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	rows, err := db.Search(`"简历"`, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("results = %d, want 1", len(rows))
	}
}

func TestSearchEmptyQueryAndLimit(t *testing.T) {
	db, _ := OpenMemory()
	defer db.Close()

	if rows, err := db.Search("  ", 10); err != nil || rows != nil {
		t.Errorf("blank query: rows=%v err=%v", rows, err)
	}
	if rows, err := db.Search(`"x"`, 0); err != nil || rows != nil {
		t.Errorf("zero limit: rows=%v err=%v", rows, err)
	}
}

func TestEscapeLike(t *testing.T) {
	got := escapeLike(`50%_\done`)
	want := `50\%\_\\done`
	if got != want {
		t.Errorf("escapeLike = %q, want %q", got, want)
	}
}
