package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hitoshi/tripplanner/internal/model"
)

func (a *cli) itinerariesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "itineraries",
		Aliases: []string{"itinerary"},
		Short:   "List and create itineraries",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List your itineraries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				itineraries, err := c.itineraries.LoadItineraries(ctx)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return a.printJSON(itineraries)
				}
				tw := a.table()
				fmt.Fprintln(tw, "ID\tTITLE\tDESTINATION\tSTART\tEND\tWARNINGS")
				for _, it := range itineraries {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%t\n",
						it.ID, it.Title, it.Destination, it.StartDate, it.EndDate,
						c.itineraries.IsTravelWarningsEnabled(it.ID))
				}
				return tw.Flush()
			})
		},
	}

	var in model.Itinerary
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an itinerary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, d := range []string{in.StartDate, in.EndDate} {
				if _, ok := model.ParseDate(d); d != "" && !ok {
					return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", d)
				}
			}
			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				created, err := c.itineraries.AddItinerary(ctx, in)
				if err != nil {
					return err
				}
				if created == nil {
					return errors.New("itinerary was created but could not be found in the reloaded list")
				}
				if a.jsonOutput {
					return a.printJSON(created)
				}
				fmt.Fprintf(a.out, "旅程を作成しました: #%d %s\n", created.ID, created.Title)
				return nil
			})
		},
	}
	create.Flags().StringVar(&in.Title, "title", "", "Title")
	create.Flags().StringVar(&in.Destination, "destination", "", "Destination")
	create.Flags().StringVar(&in.StartDate, "start", "", "Start date (YYYY-MM-DD)")
	create.Flags().StringVar(&in.EndDate, "end", "", "End date (YYYY-MM-DD)")
	create.Flags().StringVar(&in.ShortDescription, "short", "", "Short description")
	create.Flags().StringVar(&in.DetailedDescription, "detailed", "", "Detailed description")
	_ = create.MarkFlagRequired("title")

	cmd.AddCommand(list, create)
	return cmd
}

func (a *cli) locationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "locations",
		Aliases: []string{"location"},
		Short:   "Manage the locations of an itinerary",
	}

	list := &cobra.Command{
		Use:   "list ITINERARY_ID",
		Short: "List the locations of an itinerary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itineraryID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				locations, err := c.locations.ListForItinerary(ctx, itineraryID)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return a.printJSON(locations)
				}
				tw := a.table()
				fmt.Fprintln(tw, "ID\tNAME\tFROM\tTO\tLAT\tLNG\tIMAGES")
				for _, l := range locations {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.4f\t%.4f\t%d\n",
						l.ID, l.Name, l.FromDate, l.ToDate, l.Latitude, l.Longitude, len(l.ImageURLs))
				}
				return tw.Flush()
			})
		},
	}

	var (
		name, description, from, to string
		imagePaths                   []string
	)
	add := &cobra.Command{
		Use:   "add ITINERARY_ID",
		Short: "Add a location to an itinerary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itineraryID, err := parseID(args[0])
			if err != nil {
				return err
			}
			in := model.NewLocation{ItineraryID: itineraryID, Name: name, Description: description}
			if in.FromDate, err = optionalDate(from); err != nil {
				return err
			}
			if in.ToDate, err = optionalDate(to); err != nil {
				return err
			}
			if in.Files, err = readUploadFiles(imagePaths); err != nil {
				return err
			}

			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				created, err := c.locations.AddToItinerary(ctx, in)
				if err != nil {
					return err
				}
				if created == nil {
					return fmt.Errorf("itinerary %d rejected the location", itineraryID)
				}
				if a.jsonOutput {
					return a.printJSON(created)
				}
				fmt.Fprintf(a.out, "訪問地を追加しました: #%d %s\n", created.ID, created.Name)
				return nil
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "Location name")
	add.Flags().StringVar(&description, "description", "", "Description")
	add.Flags().StringVar(&from, "from", "", "Arrival date (YYYY-MM-DD)")
	add.Flags().StringVar(&to, "to", "", "Departure date (YYYY-MM-DD)")
	add.Flags().StringSliceVar(&imagePaths, "image", nil, "Image file to upload (repeatable)")
	_ = add.MarkFlagRequired("name")

	del := &cobra.Command{
		Use:   "delete LOCATION_ID",
		Short: "Delete a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				deleted, err := c.locations.Delete(ctx, id)
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("location %d: %w", id, model.ErrNotFound)
				}
				fmt.Fprintf(a.out, "訪問地を削除しました: #%d\n", id)
				return nil
			})
		},
	}

	upload := &cobra.Command{
		Use:   "upload LOCATION_ID FILE...",
		Short: "Upload images to a location",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			files, err := readUploadFiles(args[1:])
			if err != nil {
				return err
			}
			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				urls, err := c.locations.UploadImages(ctx, id, files)
				if err != nil {
					return err
				}
				if urls == nil {
					return fmt.Errorf("location %d rejected the images", id)
				}
				if a.jsonOutput {
					return a.printJSON(urls)
				}
				for _, u := range urls {
					fmt.Fprintln(a.out, u)
				}
				return nil
			})
		},
	}

	removeImage := &cobra.Command{
		Use:   "remove-image LOCATION_ID IMAGE_URL",
		Short: "Remove an image from a location",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				deleted, err := c.locations.DeleteImage(ctx, id, args[1])
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("image on location %d: %w", id, model.ErrNotFound)
				}
				fmt.Fprintln(a.out, "画像を削除しました")
				return nil
			})
		},
	}

	cmd.AddCommand(list, add, del, upload, removeImage)
	return cmd
}

// optionalDate は空文字列をnil、それ以外をYYYY-MM-DDとして解析する。
func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, ok := model.ParseDate(s)
	if !ok {
		return nil, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return &t, nil
}

// readUploadFiles はアップロードする画像ファイルを読み込む。
// Content-Typeは送信時に内容から判定する。
func readUploadFiles(paths []string) ([]model.UploadFile, error) {
	files := make([]model.UploadFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		files = append(files, model.UploadFile{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}
