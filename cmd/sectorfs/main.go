package main

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/weberc2/sectorfs/pkg/device"
	"github.com/weberc2/sectorfs/pkg/filesystem"
	. "github.com/weberc2/sectorfs/pkg/types"
)

func main() {
	config, err := LoadConfig()
	if err != nil {
		logrus.Fatal(err)
	}

	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.SetLevel(level)

	app := cli.App{
		Name:        "sectorfs",
		Description: "inspect and manipulate sectorfs disk images",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "image",
				Usage: "path to the disk image",
				Value: config.Image,
			},
		},
		Commands: []*cli.Command{{
			Name:        "mkfs",
			Description: "create and format a new disk image",
			Flags: []cli.Flag{
				&cli.UintFlag{
					Name:  "sectors",
					Usage: "device size in 512-byte sectors",
					Value: uint(config.Sectors),
				},
			},
			Action: func(ctx *cli.Context) error {
				dev, err := device.CreateFileDevice(
					ctx.String("image"),
					Sector(ctx.Uint("sectors")),
				)
				if err != nil {
					return err
				}
				defer dev.Close()

				fs, err := filesystem.Format(dev)
				if err != nil {
					return err
				}
				return fs.Shutdown()
			},
		}, {
			Name:        "info",
			Description: "print the volume header",
			Action: withFS(func(fs *filesystem.FileSystem, ctx *cli.Context) error {
				header := fs.Header()
				fmt.Printf("volume:  %s\n", uuid.UUID(header.ID))
				fmt.Printf("version: %d\n", header.Version)
				fmt.Printf("sectors: %d\n", header.Sectors)
				fmt.Printf("free:    %d\n", fs.FreeMap().FreeCount())
				return nil
			}),
		}, {
			Name:        "ls",
			Description: "list a directory",
			Action: withFS(func(fs *filesystem.FileSystem, ctx *cli.Context) error {
				session := fs.NewSession()
				f, err := session.Open(pathArg(ctx))
				if err != nil {
					return err
				}
				defer f.Close()

				for {
					name, ok, err := session.Readdir(f)
					if err != nil {
						return err
					}
					if !ok {
						return nil
					}
					fmt.Println(name)
				}
			}),
		}, {
			Name:        "cat",
			Description: "write a file's contents to stdout",
			Action: withFS(func(fs *filesystem.FileSystem, ctx *cli.Context) error {
				f, err := fs.Open(pathArg(ctx))
				if err != nil {
					return err
				}
				defer f.Close()

				length, err := f.Length()
				if err != nil {
					return err
				}
				buf := make([]byte, length)
				if _, err := f.Read(buf); err != nil {
					return err
				}
				_, err = os.Stdout.Write(buf)
				return err
			}),
		}, {
			Name:        "put",
			Description: "copy stdin into a new file in the image",
			Action: withFS(func(fs *filesystem.FileSystem, ctx *cli.Context) error {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				path := pathArg(ctx)
				if err := fs.Create(path, 0); err != nil {
					return err
				}
				f, err := fs.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()

				if _, err := f.Write(data); err != nil {
					return err
				}
				return nil
			}),
		}, {
			Name:        "mkdir",
			Description: "create a directory",
			Action: withFS(func(fs *filesystem.FileSystem, ctx *cli.Context) error {
				return fs.Mkdir(pathArg(ctx))
			}),
		}, {
			Name:        "rm",
			Description: "remove a file or empty directory",
			Action: withFS(func(fs *filesystem.FileSystem, ctx *cli.Context) error {
				return fs.Remove(pathArg(ctx))
			}),
		}, {
			Name:        "stats",
			Description: "print cache statistics accumulated while mounting the image",
			Action: withFS(func(fs *filesystem.FileSystem, ctx *cli.Context) error {
				stats := fs.CacheStats()
				fmt.Printf("tries:         %d\n", stats.Tries)
				fmt.Printf("hits:          %d\n", stats.Hits)
				fmt.Printf("device reads:  %d\n", stats.DeviceReads)
				fmt.Printf("device writes: %d\n", stats.DeviceWrites)
				return nil
			}),
		}},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

// withFS mounts the image named by --image, runs the action, and, when
// the action succeeds, shuts the filesystem down so every change is
// durable. An action error is returned without a Shutdown.
func withFS(
	action func(*filesystem.FileSystem, *cli.Context) error,
) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		dev, err := device.OpenFileDevice(ctx.String("image"))
		if err != nil {
			return err
		}
		defer dev.Close()

		fs, err := filesystem.Mount(dev)
		if err != nil {
			return err
		}

		if err := action(fs, ctx); err != nil {
			return err
		}
		return fs.Shutdown()
	}
}

func pathArg(ctx *cli.Context) string {
	if ctx.Args().Len() > 0 {
		return ctx.Args().First()
	}
	return "/"
}
