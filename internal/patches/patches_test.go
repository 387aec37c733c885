package patches

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/prtimeline/internal/models"
)

const first = `From 1111111111111111111111111111111111111111 Mon Sep 17 00:00:00 2001
From: Alice <alice@example.com>
Date: Tue, 1 Mar 2022 09:00:00 +0000
Subject: [PATCH 1/2] Add widget

---
 widget.go | 3 ++-
 1 file changed, 2 insertions(+), 1 deletion(-)

diff --git a/widget.go b/widget.go
index 1234567..89abcde 100644
--- a/widget.go
+++ b/widget.go
@@ -1,3 +1,4 @@
 package widget
-var size = 1
+var size = 2
+var color = "red"
 
`

const second = `From 2222222222222222222222222222222222222222 Mon Sep 17 00:00:00 2001
From: Alice <alice@example.com>
Date: Tue, 1 Mar 2022 10:00:00 +0000
Subject: [PATCH 2/2] Document widget

---
 README.md | 1 +
 docs.md   | 1 +
 2 files changed, 2 insertions(+)

diff --git a/README.md b/README.md
index 1234567..89abcde 100644
--- a/README.md
+++ b/README.md
@@ -1 +1,2 @@
 # Widgets
+Widgets are small.
diff --git a/docs.md b/docs.md
index 1234567..89abcde 100644
--- a/docs.md
+++ b/docs.md
@@ -1 +1,2 @@
 # Docs
+See README.
`

func TestSplit(t *testing.T) {
	commits := Split(first + second)

	require.Len(t, commits, 2)
	assert.Equal(t, "1111111111111111111111111111111111111111", commits[0].SHA)
	assert.Equal(t, "2222222222222222222222222222222222222222", commits[1].SHA)
	assert.Equal(t, first, commits[0].Text)
	assert.Equal(t, second, commits[1].Text)
}

func TestSplit_HeaderInMessage(t *testing.T) {
	quoted := `From 3333333333333333333333333333333333333333 Mon Sep 17 00:00:00 2001
Subject: [PATCH] Quote an old patch

From 4444444444444444444444444444444444444444 Mon Sep 17 00:00:00 2001
---
 1 file changed, 1 insertion(+)
`
	commits := Split(quoted)

	require.Len(t, commits, 1)
	assert.Equal(t, "3333333333333333333333333333333333333333", commits[0].SHA)
	assert.Equal(t, quoted, commits[0].Text)
}

func TestSplit_Empty(t *testing.T) {
	assert.Empty(t, Split(""))
	assert.Empty(t, Split("not a patch"))
}

func TestStat(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.PatchChange
	}{
		{
			name: "single file",
			text: first,
			want: models.PatchChange{PullNumber: 5, SHA: "1111111111111111111111111111111111111111", AddedLines: 2, DeletedLines: 1, ChangedFiles: 1},
		},
		{
			name: "two files",
			text: second,
			want: models.PatchChange{PullNumber: 5, SHA: "2222222222222222222222222222222222222222", AddedLines: 2, ChangedFiles: 2},
		},
		{
			name: "diffstat only",
			text: "From 5555555555555555555555555555555555555555 Mon Sep 17 00:00:00 2001\n---\n 3 files changed, 10 insertions(+), 4 deletions(-)\n",
			want: models.PatchChange{PullNumber: 5, SHA: "5555555555555555555555555555555555555555", AddedLines: 10, DeletedLines: 4, ChangedFiles: 3},
		},
		{
			name: "deletions only",
			text: "From 6666666666666666666666666666666666666666 Mon Sep 17 00:00:00 2001\n---\n 1 file changed, 7 deletions(-)\n",
			want: models.PatchChange{PullNumber: 5, SHA: "6666666666666666666666666666666666666666", DeletedLines: 7, ChangedFiles: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commits := Split(tt.text)
			require.Len(t, commits, 1)
			assert.Equal(t, tt.want, Stat(5, commits[0]))
		})
	}
}

func TestChanges(t *testing.T) {
	got := Changes(map[int]string{
		9: second,
		3: second + first,
		4: "",
	})

	require.Len(t, got, 3)
	assert.Equal(t, 3, got[0].PullNumber)
	assert.Equal(t, "1111111111111111111111111111111111111111", got[0].SHA)
	assert.Equal(t, "2222222222222222222222222222222222222222", got[1].SHA)
	assert.Equal(t, 9, got[2].PullNumber)
}

func TestChanges_RepeatedSHAKeepsSeriesOrder(t *testing.T) {
	// a force-pushed series can carry the same sha twice
	rewritten := strings.Replace(second,
		"2222222222222222222222222222222222222222", "1111111111111111111111111111111111111111", 1)

	for i := 0; i < 20; i++ {
		got := Changes(map[int]string{5: first + rewritten, 6: rewritten + first})

		require.Len(t, got, 4)
		assert.Equal(t, []int{1, 2}, []int{got[0].ChangedFiles, got[1].ChangedFiles})
		assert.Equal(t, []int{2, 1}, []int{got[2].ChangedFiles, got[3].ChangedFiles})
	}
}
