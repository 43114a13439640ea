// Package archive packs retrieved pages into a single in-memory ZIP.
//
// Only present page results become entries; absent results are skipped
// silently so a book with missing pages still yields a partial archive:
//
//	archive, err := archive.NewBuilder().Build(ctx, pages)
//	fmt.Printf("%d entries, %d skipped\n", archive.Entries, archive.Skipped)
package archive
