package sftp

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// Upload 上传文件或目录；远程路径是已存在的目录时放到目录下
func (c *Client) Upload(ctx context.Context, localPath, remotePath string, progress ProgressFunc) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stat local path failed: %w", err)
	}
	if info.IsDir() {
		return c.uploadDirectory(ctx, localPath, remotePath, progress)
	}
	if st, err := c.sftpClient.Stat(remotePath); err == nil && st.IsDir() {
		remotePath = c.JoinPath(remotePath, filepath.Base(localPath))
	}
	return c.uploadFile(ctx, localPath, remotePath, info, progress)
}

// Download 下载文件或目录；本地路径是已存在的目录时放到目录下
func (c *Client) Download(ctx context.Context, remotePath, localPath string, progress ProgressFunc) error {
	info, err := c.sftpClient.Stat(remotePath)
	if err != nil {
		return fmt.Errorf("stat remote path failed: %w", err)
	}
	if info.IsDir() {
		return c.downloadDirectory(ctx, remotePath, localPath, progress)
	}
	if st, err := os.Stat(localPath); err == nil && st.IsDir() {
		localPath = filepath.Join(localPath, info.Name())
	}
	return c.downloadFile(ctx, remotePath, localPath, info, progress)
}

func (c *Client) uploadFile(ctx context.Context, localPath, remotePath string, info fs.FileInfo, progress ProgressFunc) error {
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := c.sftpClient.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file %s: %w", remotePath, err)
	}
	defer dst.Close()
	if err := c.sftpClient.Chmod(remotePath, info.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod remote file %s: %w", remotePath, err)
	}
	return c.copyChunks(ctx, src, dst, info.Size(), progress)
}

func (c *Client) downloadFile(ctx context.Context, remotePath, localPath string, info fs.FileInfo, progress ProgressFunc) error {
	src, err := c.sftpClient.Open(remotePath)
	if err != nil {
		return fmt.Errorf("open remote file %s: %w", remotePath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer dst.Close()
	return c.copyChunks(ctx, src, dst, info.Size(), progress)
}

type readerAt interface {
	io.Reader
	io.ReaderAt
}

type writerAt interface {
	io.Writer
	io.WriterAt
}

// copyChunks 小文件顺序拷贝，大文件按 ChunkSize 切块并发读写
func (c *Client) copyChunks(ctx context.Context, src readerAt, dst writerAt, size int64, progress ProgressFunc) error {
	if c.config.ThreadsPerFile <= 1 || size < c.config.ChunkSize {
		return streamCopy(src, dst, progress)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.ThreadsPerFile)
	for offset := int64(0); offset < size; offset += c.config.ChunkSize {
		length := min(c.config.ChunkSize, size-offset)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			buf := make([]byte, length)
			n, err := src.ReadAt(buf, offset)
			if err != nil && err != io.EOF {
				return fmt.Errorf("read at %d failed: %w", offset, err)
			}
			if n == 0 {
				return nil
			}
			if _, err := dst.WriteAt(buf[:n], offset); err != nil {
				return fmt.Errorf("write at %d failed: %w", offset, err)
			}
			if progress != nil {
				progress(n)
			}
			return nil
		})
	}
	return g.Wait()
}

func streamCopy(r io.Reader, w io.Writer, progress ProgressFunc) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, wErr := w.Write(buf[:n]); wErr != nil {
				return wErr
			}
			if progress != nil {
				progress(n)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (c *Client) uploadDirectory(ctx context.Context, localDir, remoteDir string, progress ProgressFunc) error {
	if err := c.sftpClient.MkdirAll(remoteDir); err != nil {
		return fmt.Errorf("create remote dir %s: %w", remoteDir, err)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.ConcurrentFiles)

	err := filepath.WalkDir(localDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		dest := c.JoinPath(remoteDir, filepath.ToSlash(rel))
		if d.IsDir() {
			// 目录顺序创建，文件并发传输
			return c.sftpClient.MkdirAll(dest)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		g.Go(func() error {
			return c.uploadFile(ctx, path, dest, info, progress)
		})
		return nil
	})
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return err
}

func (c *Client) downloadDirectory(ctx context.Context, remoteDir, localDir string, progress ProgressFunc) error {
	if err := os.MkdirAll(localDir, 0755); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.ConcurrentFiles)

	walker := c.sftpClient.Walk(remoteDir)
	var walkErr error
	for walker.Step() {
		if walkErr = walker.Err(); walkErr != nil {
			break
		}
		if walkErr = ctx.Err(); walkErr != nil {
			break
		}
		rel, err := filepath.Rel(remoteDir, walker.Path())
		if err != nil {
			continue
		}
		dest := filepath.Join(localDir, rel)
		info := walker.Stat()
		if info.IsDir() {
			if walkErr = os.MkdirAll(dest, 0755); walkErr != nil {
				break
			}
			continue
		}
		remote := walker.Path()
		g.Go(func() error {
			return c.downloadFile(ctx, remote, dest, info, progress)
		})
	}
	if err := g.Wait(); walkErr == nil {
		walkErr = err
	}
	return walkErr
}
