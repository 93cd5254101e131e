package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hitoshi/tripplanner/internal/model"
)

func (a *cli) weatherCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weather",
		Short: "Weather forecasts for locations",
	}

	var (
		lat, lon float64
		refresh  bool
	)
	get := &cobra.Command{
		Use:   "get [LOCATION]",
		Short: "Show the forecast for a location name or coordinates",
		Long: `座標（--lat/--lon）を指定した場合は保存済みの予報を取得し、無ければ取得を依頼します。
地点名のみを指定した場合は保存済みの予報を地点名で検索します。`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			hasCoords := cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon")
			if !hasCoords && name == "" {
				return fmt.Errorf("either LOCATION or --lat and --lon are required")
			}

			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				if err := requireFeature(c.cfg.Features.Weather, "weather"); err != nil {
					return err
				}

				var (
					f   *model.WeatherForecast
					err error
				)
				switch {
				case hasCoords && refresh:
					f, err = c.weather.Refresh(ctx, model.Coordinates{Latitude: lat, Longitude: lon, Location: name})
				case hasCoords:
					f, err = c.weather.GetOrFetch(ctx, model.Coordinates{Latitude: lat, Longitude: lon, Location: name})
				default:
					f, err = c.weather.GetByLocationName(ctx, name)
				}
				if err != nil {
					return err
				}
				if f == nil {
					return fmt.Errorf("forecast: %w", model.ErrNotFound)
				}
				return a.printForecast(*f)
			})
		},
	}
	get.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	get.Flags().Float64Var(&lon, "lon", 0, "Longitude")
	get.Flags().BoolVar(&refresh, "refresh", false, "Ask the weather service to fetch a new forecast")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored forecasts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				if err := requireFeature(c.cfg.Features.Weather, "weather"); err != nil {
					return err
				}
				forecasts := c.weather.ListAll(ctx)
				if a.jsonOutput {
					return a.printJSON(forecasts)
				}
				tw := a.table()
				fmt.Fprintln(tw, "LOCATION\tLAT\tLNG\tUPDATED\tDAYS")
				for _, f := range forecasts {
					fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%s\t%d\n", f.Location, f.Latitude, f.Longitude, f.LastUpdated, len(f.Daily))
				}
				return tw.Flush()
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete LOCATION",
		Short: "Delete a stored forecast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				if err := requireFeature(c.cfg.Features.Weather, "weather"); err != nil {
					return err
				}
				deleted, err := c.weather.Delete(ctx, args[0])
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("forecast for %s: %w", args[0], model.ErrNotFound)
				}
				fmt.Fprintf(a.out, "予報を削除しました: %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(get, list, del)
	return cmd
}

func (a *cli) printForecast(f model.WeatherForecast) error {
	if a.jsonOutput {
		return a.printJSON(f)
	}
	fmt.Fprintf(a.out, "%s (%.4f, %.4f) updated %s\n", f.Location, f.Latitude, f.Longitude, f.LastUpdated)
	tw := a.table()
	fmt.Fprintln(tw, "DATE\tMIN\tMAX\tRAIN%\tWEATHER")
	for _, d := range f.Daily {
		fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%d\t%s\n",
			d.Date, d.TemperatureMin, d.TemperatureMax, d.PrecipitationProbability, d.WeatherDescription)
	}
	return tw.Flush()
}

func (a *cli) geocodeCommand() *cobra.Command {
	var reverse string
	cmd := &cobra.Command{
		Use:   "geocode [QUERY]",
		Short: "Look up a place, or the country of coordinates with --reverse LAT,LON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reverse == "" && len(args) == 0 {
				return fmt.Errorf("QUERY or --reverse is required")
			}

			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				if reverse != "" {
					lat, lon, err := parseLatLon(reverse)
					if err != nil {
						return err
					}
					country, err := c.geocoder.Reverse(ctx, lat, lon)
					if err != nil {
						return err
					}
					if country == nil {
						return fmt.Errorf("country for %s: %w", reverse, model.ErrNotFound)
					}
					if a.jsonOutput {
						return a.printJSON(country)
					}
					fmt.Fprintf(a.out, "%s (%s)\n", country.Name, country.Code)
					return nil
				}

				place, err := c.geocoder.Search(ctx, args[0])
				if err != nil {
					return err
				}
				if place == nil {
					return fmt.Errorf("place %q: %w", args[0], model.ErrNotFound)
				}
				if a.jsonOutput {
					return a.printJSON(place)
				}
				fmt.Fprintf(a.out, "%s\n%s (%.6f, %.6f)\n", place.ShortLabel, place.Display, place.Lat, place.Lng)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reverse, "reverse", "", "Coordinates as LAT,LON")
	return cmd
}

// parseLatLon は"緯度,経度"形式の文字列を解析する。
func parseLatLon(s string) (float64, float64, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid coordinates %q: expected LAT,LON", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("invalid latitude %q", latStr)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("invalid longitude %q", lonStr)
	}
	return lat, lon, nil
}
