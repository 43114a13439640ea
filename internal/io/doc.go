// Package ioutils provides file system and image utilities for actibook-downloader.
//
// This package contains:
//   - FileSink, the delivery sink that saves finished archives to a directory
//   - DirLock, a cross-process lock on an output directory
//   - ImageService, optional downscaling of page images
//
// # Delivering Archives
//
//	sink := ioutils.NewFileSink("/home/user/Downloads/ActiBook")
//	path, err := sink.Deliver(ctx, "Demo.zip", data)
//	// path == "/home/user/Downloads/ActiBook/Demo.zip"
//	// or ".../Demo (1).zip" when Demo.zip already exists
//
// # Locking an Output Directory
//
//	lock := ioutils.NewDirLock(dir)
//	ok, err := lock.TryLock()
//	if ok {
//	    defer lock.Unlock()
//	}
package ioutils
