// Package diskkit presents local directories and S3 buckets as named disks
// behind one uniform set of file operations.
//
// A disk is a [Filesystem] facade over an [Adapter]. The facade normalizes
// caller paths and forwards each operation to the adapter, which talks to the
// backend. Disks are built by drivers and registered under a name with a
// storage manager (package manager), which also provides the default disk.
//
// # Storage Backends
//
//   - Local filesystem (github.com/gobeaver/diskkit/driver/local), drivers
//     "local" and "local-image"
//   - Amazon S3 and compatible stores (github.com/gobeaver/diskkit/driver/s3),
//     driver "s3"
//
// # Basic Usage
//
//	m := manager.New()
//
//	disk, err := m.RegisterLocalDisk("uploads", "./storage", map[string]any{
//	    "links": "skip",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = disk.AsDefault()
//
//	ctx := context.Background()
//
//	// Write a file
//	err = m.Default().Write(ctx, "hello.txt", []byte("Hello, World!"), diskkit.WithVisibility(diskkit.Public))
//
//	// Read a file
//	data, err := m.Default().Read(ctx, "hello.txt")
//
//	// List directory contents
//	entries, err := disk.ListContents(ctx, "", true).SortByPath()
//
// # Visibility
//
// Every entry is either [Public] or [Private]. Local adapters translate
// visibility into permission bits through a [VisibilityConverter]; the S3
// adapter translates it into canned ACLs.
//
//	conv, err := diskkit.NewVisibilityConverterFromTable(diskkit.PermissionTable{
//	    File: diskkit.PermissionPair{Public: 0o640, Private: 0o600},
//	}, diskkit.Private)
//
// # Attributes
//
// Listings and StorageAttributes calls return [*FileAttributes] or
// [*DirectoryAttributes]. Paths are relative to the disk root and always use
// forward slashes.
//
// # Optional Capabilities
//
// Adapters may implement optional capability interfaces. The facade uses them
// when present:
//
//	// Native checksums, otherwise the contents are streamed through the hasher
//	sum, err := disk.Checksum(ctx, "file.bin", diskkit.ChecksumXXHash)
//
//	// Change notifications
//	token, err := disk.Watch(ctx, "config/*.json")
//
// # Error Handling
//
// Operations return a [*PathError] wrapping one of the package sentinels.
// Use the helpers to inspect them:
//
//	if diskkit.IsNotExist(err) {
//	    // File doesn't exist
//	}
//
//	var link *diskkit.SymbolicLinkEncountered
//	if errors.As(err, &link) {
//	    // A symbolic link was met under the disallow policy
//	}
//
// Invalid driver arguments produce a [*ConfigError]; see [IsConfigError].
package diskkit
