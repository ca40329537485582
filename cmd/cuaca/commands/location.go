package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yandri918/prediksi-cuaca/internal/weather"
)

// locationCmd represents the location command
var locationCmd = &cobra.Command{
	Use:   "location",
	Short: "지점 검색",
}

var (
	locationSearchCmd = &cobra.Command{
		Use:   "search [name]",
		Short: "지명으로 위경도 검색 (Open-Meteo 지오코딩)",
		Args:  cobra.MinimumNArgs(1),
		RunE:  searchLocations,
	}

	variablesCmd = &cobra.Command{
		Use:   "variables",
		Short: "예측 가능한 기상 변수 목록",
		RunE:  listVariables,
	}
)

func init() {
	rootCmd.AddCommand(locationCmd)
	rootCmd.AddCommand(variablesCmd)
	locationCmd.AddCommand(locationSearchCmd)
}

func searchLocations(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	name := strings.Join(args, " ")
	locations, err := a.weather.SearchLocations(ctx, name)
	if err != nil {
		return err
	}
	if len(locations) == 0 {
		PrintInfo(fmt.Sprintf("No locations found for %q", name))
		return nil
	}

	rows := [][]string{{"name", "admin1", "country", "latitude", "longitude", "timezone"}}
	for _, l := range locations {
		rows = append(rows, []string{
			l.Name,
			l.Admin1,
			l.Country,
			fmt.Sprintf("%.4f", l.Latitude),
			fmt.Sprintf("%.4f", l.Longitude),
			l.Timezone,
		})
	}
	PrintTable(rows)
	return nil
}

func listVariables(cmd *cobra.Command, args []string) error {
	rows := [][]string{{"name", "unit", "granularity", "description"}}
	for _, v := range weather.Variables() {
		name := v.Name
		if name == weather.DefaultVariable {
			name += " *"
		}
		rows = append(rows, []string{name, v.Unit, string(v.Granularity), v.Description})
	}
	PrintTable(rows)
	return nil
}
