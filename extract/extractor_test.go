package extract_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkline/forkline"
	"github.com/forkline/forkline/extract"
	"github.com/forkline/forkline/library"
	"github.com/forkline/forkline/mock"
	"github.com/forkline/forkline/unidiff"
)

const modifyDiff = `diff --git a/src/main.cc b/src/main.cc
index abc123..def456 100644
--- a/src/main.cc
+++ b/src/main.cc
@@ -1 +1 @@
-old
+new
`

const threeFileDiff = `diff --git a/mod.txt b/mod.txt
index abc..def 100644
--- a/mod.txt
+++ b/mod.txt
@@ -1 +1 @@
-a
+b
diff --git a/added.txt b/added.txt
new file mode 100644
index 0000000..abc
--- /dev/null
+++ b/added.txt
@@ -0,0 +1 @@
+content
diff --git a/gone.txt b/gone.txt
deleted file mode 100644
index abc..0000000
--- a/gone.txt
+++ /dev/null
@@ -1 +0,0 @@
-content
`

func newExtractor(t *testing.T, backend *mock.Backend) (*extract.Extractor, *library.Library) {
	t.Helper()
	lib := library.New(t.TempDir())
	return &extract.Extractor{
		Backend: backend,
		Parser:  unidiff.NewParser(),
		Library: lib,
		Decider: &mock.DecisionProvider{},
	}, lib
}

func TestExtractor_Commit_Direct(t *testing.T) {
	t.Parallel()

	t.Run("writes one artifact per changed file", func(t *testing.T) {
		t.Parallel()

		var gotRange string
		backend := &mock.Backend{
			DiffFn: func(_ context.Context, opts forkline.DiffOptions) (string, error) {
				gotRange = opts.Range
				return threeFileDiff, nil
			},
		}
		ex, lib := newExtractor(t, backend)

		res, err := ex.Commit(context.Background(), "abc123", extract.Options{})
		require.NoError(t, err)
		assert.Equal(t, "abc123^..abc123", gotRange)
		assert.Equal(t, 3, res.Written)
		assert.Equal(t, 1, res.Counts.Added)
		assert.Equal(t, 1, res.Counts.Modified)
		assert.Equal(t, 1, res.Counts.Deleted)

		_, err = lib.ReadArtifact("mod.txt")
		assert.NoError(t, err)
		_, err = lib.ReadArtifact("added.txt")
		assert.NoError(t, err)
		// Deletions become markers, not content artifacts.
		assert.FileExists(t, filepath.Join(lib.Root, "gone.txt.deleted"))
	})

	t.Run("round-trips hunk text byte-for-byte", func(t *testing.T) {
		t.Parallel()

		backend := &mock.Backend{
			DiffFn: func(_ context.Context, _ forkline.DiffOptions) (string, error) {
				return modifyDiff, nil
			},
		}
		ex, lib := newExtractor(t, backend)

		_, err := ex.Commit(context.Background(), "abc123", extract.Options{})
		require.NoError(t, err)

		stored, err := lib.ReadArtifact("src/main.cc")
		require.NoError(t, err)
		assert.Equal(t, modifyDiff, stored)
	})

	t.Run("unknown commit is NotFound", func(t *testing.T) {
		t.Parallel()

		backend := &mock.Backend{
			CommitExistsFn: func(_ context.Context, _ string) bool { return false },
		}
		ex, _ := newExtractor(t, backend)

		_, err := ex.Commit(context.Background(), "nope", extract.Options{})
		require.Error(t, err)
		assert.True(t, forkline.IsNotFound(err))
	})

	t.Run("empty diff reports no changes", func(t *testing.T) {
		t.Parallel()

		ex, _ := newExtractor(t, &mock.Backend{})
		_, err := ex.Commit(context.Background(), "abc123", extract.Options{})
		assert.ErrorIs(t, err, forkline.ErrNoChanges)
	})

	t.Run("binary files are skipped unless requested", func(t *testing.T) {
		t.Parallel()

		binaryDiff := "diff --git a/img.png b/img.png\nindex abc..def 100644\nBinary files a/img.png and b/img.png differ\n"
		backend := &mock.Backend{
			DiffFn: func(_ context.Context, _ forkline.DiffOptions) (string, error) {
				return binaryDiff, nil
			},
		}

		ex, lib := newExtractor(t, backend)
		res, err := ex.Commit(context.Background(), "abc", extract.Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Skipped)
		assert.Zero(t, res.Written)

		ex2, lib2 := newExtractor(t, backend)
		res2, err := ex2.Commit(context.Background(), "abc", extract.Options{IncludeBinary: true})
		require.NoError(t, err)
		assert.Equal(t, 1, res2.Written)
		assert.FileExists(t, filepath.Join(lib2.Root, "img.png.binary"))
		assert.NoFileExists(t, filepath.Join(lib.Root, "img.png.binary"))
	})
}

func TestExtractor_Overwrite(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T) (*mock.Backend, *extract.Extractor, *library.Library) {
		t.Helper()
		backend := &mock.Backend{
			DiffFn: func(_ context.Context, _ forkline.DiffOptions) (string, error) {
				return modifyDiff, nil
			},
		}
		ex, lib := newExtractor(t, backend)
		require.NoError(t, lib.WriteArtifact("src/main.cc", "hand edited"))
		return backend, ex, lib
	}

	t.Run("declined confirmation aborts without writing", func(t *testing.T) {
		t.Parallel()

		_, ex, lib := seed(t)
		ex.Decider = &mock.DecisionProvider{
			ConfirmOverwriteFn: func(_ context.Context, existing []string) (bool, error) {
				assert.Equal(t, []string{"src/main.cc"}, existing)
				return false, nil
			},
		}

		_, err := ex.Commit(context.Background(), "abc123", extract.Options{})
		assert.ErrorIs(t, err, forkline.ErrAborted)

		stored, err := lib.ReadArtifact("src/main.cc")
		require.NoError(t, err)
		assert.Equal(t, "hand edited\n", stored)
	})

	t.Run("force bypasses confirmation", func(t *testing.T) {
		t.Parallel()

		_, ex, lib := seed(t)
		ex.Decider = &mock.DecisionProvider{
			ConfirmOverwriteFn: func(_ context.Context, _ []string) (bool, error) {
				t.Error("ConfirmOverwrite should not be called with Force")
				return false, nil
			},
		}

		_, err := ex.Commit(context.Background(), "abc123", extract.Options{Force: true})
		require.NoError(t, err)

		stored, err := lib.ReadArtifact("src/main.cc")
		require.NoError(t, err)
		assert.Equal(t, modifyDiff, stored)
	})
}

func TestExtractor_Commit_CustomBase(t *testing.T) {
	t.Parallel()

	t.Run("diffs each changed file from the base", func(t *testing.T) {
		t.Parallel()

		var ranges []string
		backend := &mock.Backend{
			ChangedFilesFn: func(_ context.Context, _ string) ([]string, error) {
				return []string{"src/main.cc"}, nil
			},
			DiffFn: func(_ context.Context, opts forkline.DiffOptions) (string, error) {
				ranges = append(ranges, opts.Range)
				assert.Equal(t, []string{"src/main.cc"}, opts.Paths)
				return modifyDiff, nil
			},
		}
		ex, _ := newExtractor(t, backend)

		res, err := ex.Commit(context.Background(), "head1", extract.Options{Base: "upstream/main"})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Written)
		require.NotEmpty(t, ranges)
		assert.Equal(t, "upstream/main..head1", ranges[0])
	})

	t.Run("empty diff with file gone at head is a delete", func(t *testing.T) {
		t.Parallel()

		backend := &mock.Backend{
			ChangedFilesFn: func(_ context.Context, _ string) ([]string, error) {
				return []string{"removed.cc"}, nil
			},
			DiffFn: func(_ context.Context, _ forkline.DiffOptions) (string, error) {
				return "", nil
			},
			ObjectExistsFn: func(_ context.Context, rev, _ string) bool {
				return rev == "upstream/main" // present at base, absent at head
			},
		}
		ex, lib := newExtractor(t, backend)

		res, err := ex.Commit(context.Background(), "head1", extract.Options{Base: "upstream/main"})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Counts.Deleted)
		assert.FileExists(t, filepath.Join(lib.Root, "removed.cc.deleted"))
	})

	t.Run("file unchanged relative to base is not tracked", func(t *testing.T) {
		t.Parallel()

		backend := &mock.Backend{
			ChangedFilesFn: func(_ context.Context, _ string) ([]string, error) {
				return []string{"same.cc"}, nil
			},
			ObjectExistsFn: func(_ context.Context, _, _ string) bool { return true },
		}
		ex, _ := newExtractor(t, backend)

		_, err := ex.Commit(context.Background(), "head1", extract.Options{Base: "upstream/main"})
		assert.ErrorIs(t, err, forkline.ErrNoChanges)
	})
}

func TestExtractor_Range(t *testing.T) {
	t.Parallel()

	t.Run("empty range reports no changes", func(t *testing.T) {
		t.Parallel()

		ex, _ := newExtractor(t, &mock.Backend{})
		_, err := ex.Range(context.Background(), "base", "head", true, extract.Options{})
		assert.ErrorIs(t, err, forkline.ErrNoChanges)
	})

	t.Run("squashed range parses one cumulative diff", func(t *testing.T) {
		t.Parallel()

		var gotRange string
		backend := &mock.Backend{
			CountCommitsFn: func(_ context.Context, _, _ string) (int, error) { return 5, nil },
			DiffFn: func(_ context.Context, opts forkline.DiffOptions) (string, error) {
				gotRange = opts.Range
				return threeFileDiff, nil
			},
		}
		ex, _ := newExtractor(t, backend)

		res, err := ex.Range(context.Background(), "base", "head", true, extract.Options{})
		require.NoError(t, err)
		assert.Equal(t, "base..head", gotRange)
		assert.Equal(t, 3, res.Written)
	})

	t.Run("individual range extracts every commit and collects failures", func(t *testing.T) {
		t.Parallel()

		backend := &mock.Backend{
			CountCommitsFn: func(_ context.Context, _, _ string) (int, error) { return 2, nil },
			RevListFn: func(_ context.Context, _, _ string) ([]string, error) {
				return []string{"c1", "c2"}, nil
			},
			CommitExistsFn: func(_ context.Context, rev string) bool {
				return rev != "c2" // second commit fails validation
			},
			DiffFn: func(_ context.Context, _ forkline.DiffOptions) (string, error) {
				return modifyDiff, nil
			},
		}
		ex, _ := newExtractor(t, backend)

		res, err := ex.Range(context.Background(), "base", "head", false, extract.Options{Force: true})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Written)
		assert.Equal(t, []string{"c2"}, res.Failed)
	})

	t.Run("squashed custom base diffs range files against the base", func(t *testing.T) {
		t.Parallel()

		var got forkline.DiffOptions
		backend := &mock.Backend{
			CountCommitsFn: func(_ context.Context, _, _ string) (int, error) { return 3, nil },
			RangeFilesFn: func(_ context.Context, base, head string) ([]string, error) {
				assert.Equal(t, "base", base)
				assert.Equal(t, "head", head)
				return []string{"src/main.cc"}, nil
			},
			DiffFn: func(_ context.Context, opts forkline.DiffOptions) (string, error) {
				got = opts
				return modifyDiff, nil
			},
		}
		ex, _ := newExtractor(t, backend)

		_, err := ex.Range(context.Background(), "base", "head", true, extract.Options{Base: "upstream/main"})
		require.NoError(t, err)
		assert.Equal(t, "upstream/main..head", got.Range)
		assert.Equal(t, []string{"src/main.cc"}, got.Paths)
	})
}

func TestExtractor_WriteKinds(t *testing.T) {
	t.Parallel()

	t.Run("pure rename becomes a rename marker", func(t *testing.T) {
		t.Parallel()

		renameDiff := "diff --git a/old.txt b/new.txt\nsimilarity index 100%\nrename from old.txt\nrename to new.txt\n"
		backend := &mock.Backend{
			DiffFn: func(_ context.Context, _ forkline.DiffOptions) (string, error) {
				return renameDiff, nil
			},
		}
		ex, lib := newExtractor(t, backend)

		_, err := ex.Commit(context.Background(), "abc", extract.Options{})
		require.NoError(t, err)

		oldPath, similarity, err := lib.ReadRenameMarker("new.txt")
		require.NoError(t, err)
		assert.Equal(t, "old.txt", oldPath)
		assert.Equal(t, 100, similarity)
		assert.NoFileExists(t, filepath.Join(lib.Root, "new.txt.patch"))
	})
}

func TestExtractor_Cancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := &mock.Backend{
		CountCommitsFn: func(_ context.Context, _, _ string) (int, error) { return 2, nil },
		RevListFn: func(_ context.Context, _, _ string) ([]string, error) {
			return []string{"c1", "c2"}, nil
		},
	}
	ex, _ := newExtractor(t, backend)

	_, err := ex.Range(ctx, "base", "head", false, extract.Options{Force: true})
	assert.ErrorIs(t, err, context.Canceled)
}
