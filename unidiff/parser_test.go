package unidiff_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkline/forkline"
	"github.com/forkline/forkline/unidiff"
)

func TestParser_Parse_Modify(t *testing.T) {
	t.Parallel()

	diff := `diff --git a/file.txt b/file.txt
index abc123..def456 100644
--- a/file.txt
+++ b/file.txt
@@ -1,3 +1,3 @@
 line1
-old line2
+new line2
 line3`

	result, err := unidiff.NewParser().Parse(strings.NewReader(diff))
	require.NoError(t, err)
	require.Len(t, result, 1)

	fp := result["file.txt"]
	require.NotNil(t, fp)
	assert.Equal(t, forkline.OpModify, fp.Operation)
	assert.False(t, fp.IsBinary)
	// The artifact replays byte-for-byte, including the header lines.
	assert.Equal(t, diff, fp.Content)
}

func TestParser_Parse_NewFile(t *testing.T) {
	t.Parallel()

	diff := `diff --git a/newfile.txt b/newfile.txt
new file mode 100644
index 0000000..abc123
--- /dev/null
+++ b/newfile.txt
@@ -0,0 +1,3 @@
+line1
+line2
+line3`

	result, err := unidiff.NewParser().Parse(strings.NewReader(diff))
	require.NoError(t, err)
	require.Contains(t, result, "newfile.txt")
	assert.Equal(t, forkline.OpAdd, result["newfile.txt"].Operation)
	assert.NotEmpty(t, result["newfile.txt"].Content)
}

func TestParser_Parse_DeletedFile(t *testing.T) {
	t.Parallel()

	diff := `diff --git a/deleted.txt b/deleted.txt
deleted file mode 100644
index abc123..0000000
--- a/deleted.txt
+++ /dev/null
@@ -1,3 +0,0 @@
-line1
-line2
-line3`

	result, err := unidiff.NewParser().Parse(strings.NewReader(diff))
	require.NoError(t, err)
	require.Contains(t, result, "deleted.txt")
	assert.Equal(t, forkline.OpDelete, result["deleted.txt"].Operation)
}

func TestParser_Parse_PureRename(t *testing.T) {
	t.Parallel()

	diff := `diff --git a/a.txt b/b.txt
similarity index 100%
rename from a.txt
rename to b.txt`

	result, err := unidiff.NewParser().Parse(strings.NewReader(diff))
	require.NoError(t, err)
	require.Len(t, result, 1)

	fp := result["b.txt"]
	require.NotNil(t, fp)
	assert.Equal(t, forkline.OpRename, fp.Operation)
	assert.Equal(t, "a.txt", fp.OldPath)
	assert.Equal(t, 100, fp.Similarity)
	// A pure rename has no content delta to replay.
	assert.Empty(t, fp.Content)
}

func TestParser_Parse_RenameWithChanges(t *testing.T) {
	t.Parallel()

	diff := `diff --git a/old_name.txt b/new_name.txt
similarity index 85%
rename from old_name.txt
rename to new_name.txt
index abc123..def456 100644
--- a/old_name.txt
+++ b/new_name.txt
@@ -1,3 +1,4 @@
 line1
 line2
-line3
+modified line3
+new line4`

	result, err := unidiff.NewParser().Parse(strings.NewReader(diff))
	require.NoError(t, err)

	fp := result["new_name.txt"]
	require.NotNil(t, fp)
	assert.Equal(t, forkline.OpRename, fp.Operation)
	assert.Equal(t, "old_name.txt", fp.OldPath)
	assert.Equal(t, 85, fp.Similarity)
	assert.Equal(t, diff, fp.Content)
}

func TestParser_Parse_CopiedFile(t *testing.T) {
	t.Parallel()

	diff := `diff --git a/original.txt b/copy.txt
similarity index 100%
copy from original.txt
copy to copy.txt`

	result, err := unidiff.NewParser().Parse(strings.NewReader(diff))
	require.NoError(t, err)

	fp := result["copy.txt"]
	require.NotNil(t, fp)
	assert.Equal(t, forkline.OpCopy, fp.Operation)
	assert.Equal(t, "original.txt", fp.OldPath)
	assert.Equal(t, 100, fp.Similarity)
	assert.Empty(t, fp.Content)
}

func TestParser_Parse_BinaryFile(t *testing.T) {
	t.Parallel()

	diff := `diff --git a/image.png b/image.png
index abc123..def456 100644
Binary files a/image.png and b/image.png differ`

	result, err := unidiff.NewParser().Parse(strings.NewReader(diff))
	require.NoError(t, err)

	fp := result["image.png"]
	require.NotNil(t, fp)
	assert.True(t, fp.IsBinary)
	assert.Equal(t, forkline.OpBinary, fp.Operation)
	// Binary content is opaque and never captured, not even a placeholder.
	assert.Empty(t, fp.Content)
}

func TestParser_Parse_BinaryAddKeepsOperation(t *testing.T) {
	t.Parallel()

	diff := `diff --git a/logo.png b/logo.png
new file mode 100644
index 0000000..def456
Binary files /dev/null and b/logo.png differ`

	result, err := unidiff.NewParser().Parse(strings.NewReader(diff))
	require.NoError(t, err)

	fp := result["logo.png"]
	require.NotNil(t, fp)
	assert.True(t, fp.IsBinary)
	assert.Equal(t, forkline.OpAdd, fp.Operation)
	assert.Empty(t, fp.Content)
}

func TestParser_Parse_MultipleFiles(t *testing.T) {
	t.Parallel()

	diff := `diff --git a/file1.txt b/file1.txt
index abc123..def456 100644
--- a/file1.txt
+++ b/file1.txt
@@ -1 +1 @@
-old content
+new content
diff --git a/file2.txt b/file2.txt
new file mode 100644
index 0000000..xyz789
--- /dev/null
+++ b/file2.txt
@@ -0,0 +1 @@
+new file content
diff --git a/file3.txt b/file3.txt
deleted file mode 100644
index 111111..000000
--- a/file3.txt
+++ /dev/null
@@ -1 +0,0 @@
-deleted content`

	result, err := unidiff.NewParser().Parse(strings.NewReader(diff))
	require.NoError(t, err)
	require.Len(t, result, 3)

	assert.Equal(t, forkline.OpModify, result["file1.txt"].Operation)
	assert.Equal(t, forkline.OpAdd, result["file2.txt"].Operation)
	assert.Equal(t, forkline.OpDelete, result["file3.txt"].Operation)
	for _, fp := range result {
		assert.False(t, fp.IsBinary)
	}
}

func TestParser_Parse_NoNewlineMarkers(t *testing.T) {
	t.Parallel()

	diff := `diff --git a/file.txt b/file.txt
index abc123..def456 100644
--- a/file.txt
+++ b/file.txt
@@ -1 +1 @@
-old content
\ No newline at end of file
+new content
\ No newline at end of file`

	result, err := unidiff.NewParser().Parse(strings.NewReader(diff))
	require.NoError(t, err)

	fp := result["file.txt"]
	require.NotNil(t, fp)
	assert.Equal(t, forkline.OpModify, fp.Operation)
	assert.Equal(t, 2, strings.Count(fp.Content, `\ No newline at end of file`))
}

func TestParser_Parse_ModeChangeKeepsContent(t *testing.T) {
	t.Parallel()

	diff := `diff --git a/script.sh b/script.sh
old mode 100644
new mode 100755
index abc123..abc123
--- a/script.sh
+++ b/script.sh
@@ -1 +1 @@
 #!/bin/bash`

	result, err := unidiff.NewParser().Parse(strings.NewReader(diff))
	require.NoError(t, err)

	fp := result["script.sh"]
	require.NotNil(t, fp)
	assert.Equal(t, forkline.OpModify, fp.Operation)
	assert.Contains(t, fp.Content, "old mode 100644")
	assert.Contains(t, fp.Content, "new mode 100755")
}

func TestParser_Parse_ComplexPath(t *testing.T) {
	t.Parallel()

	diff := `diff --git a/src/chrome/browser/ui/views/file.cc b/src/chrome/browser/ui/views/file.cc
index abc123..def456 100644
--- a/src/chrome/browser/ui/views/file.cc
+++ b/src/chrome/browser/ui/views/file.cc
@@ -100,7 +100,7 @@ void Function() {
   int x = 1;
-  int y = 2;
+  int y = 3;
   return x + y;
 }`

	result, err := unidiff.NewParser().Parse(strings.NewReader(diff))
	require.NoError(t, err)
	require.Contains(t, result, "src/chrome/browser/ui/views/file.cc")
	assert.Equal(t, forkline.OpModify, result["src/chrome/browser/ui/views/file.cc"].Operation)
}

func TestParser_Parse_EmptyInput(t *testing.T) {
	t.Parallel()

	result, err := unidiff.NewParser().Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestParser_Parse_UnparseableHeaderSkipsSection(t *testing.T) {
	t.Parallel()

	diff := `diff --git garbage header
index abc123..def456 100644
--- a/x.txt
+++ b/x.txt
@@ -1 +1 @@
-a
+b
diff --git a/ok.txt b/ok.txt
index abc123..def456 100644
--- a/ok.txt
+++ b/ok.txt
@@ -1 +1 @@
-a
+b`

	result, err := unidiff.NewParser().Parse(strings.NewReader(diff))
	require.NoError(t, err)
	// The malformed section is dropped; the parse itself succeeds.
	require.Len(t, result, 1)
	assert.Contains(t, result, "ok.txt")
}

func TestParser_Parse_Idempotent(t *testing.T) {
	t.Parallel()

	diff := `diff --git a/file1.txt b/file1.txt
index abc123..def456 100644
--- a/file1.txt
+++ b/file1.txt
@@ -1 +1 @@
-old content
+new content
diff --git a/a.txt b/b.txt
similarity index 90%
rename from a.txt
rename to b.txt
index abc..def 100644
--- a/a.txt
+++ b/b.txt
@@ -1 +1 @@
-x
+y`

	first, err := unidiff.NewParser().Parse(strings.NewReader(diff))
	require.NoError(t, err)
	second, err := unidiff.NewParser().Parse(strings.NewReader(diff))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParser_Parse_LargeLine(t *testing.T) {
	t.Parallel()

	// A single added line well past bufio's 64KB default buffer.
	long := strings.Repeat("x", 100*1024)
	diff := "diff --git a/gen.min.js b/gen.min.js\n" +
		"index abc123..def456 100644\n" +
		"--- a/gen.min.js\n" +
		"+++ b/gen.min.js\n" +
		"@@ -1 +1 @@\n" +
		"-old\n" +
		"+" + long

	result, err := unidiff.NewParser().Parse(strings.NewReader(diff))
	require.NoError(t, err)
	require.Contains(t, result, "gen.min.js")
	assert.Contains(t, result["gen.min.js"].Content, long)
}
