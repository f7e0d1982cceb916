package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/alveoutils/bitflash/flasher"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const version = "0.2.1"

const defaultConfigFile = "prog_config.txt"

// The main command runs the one-shot programming flow, or sticks
// around serving the status API when api-service is set.
var mainCmd = &cobra.Command{
	Use:   "bitflash",
	Short: "Bitstream programming front end",
	Long: `bitflash reads the programming config, locates the freshest .bit
file under the bitstream directory and flashes it onto the target FPGA
through Vivado Lab or openFPGALoader.`,
	Run: func(cmd *cobra.Command, args []string) {
		assignFromViper(mainflasher)
		if mainflasher.WebEnable {
			watchConfig()
			mainflasher.ServeMain()
			return
		}
		if err := mainflasher.FlashMain(); err != nil {
			os.Exit(1)
		}
	},
}

// The version command prints this tool's version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

var examineCmd = &cobra.Command{
	Use:   "examine",
	Short: "Print the connected device's identity.",
	Run: func(cmd *cobra.Command, args []string) {
		assignFromViper(mainflasher)
		if err := mainflasher.ExamineMain(); err != nil {
			log.Fatal(err)
		}
	},
}

var diagCmd = &cobra.Command{
	Use:   "diag [sensors|echo]",
	Short: "Run a post-flash diagnostic.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		assignFromViper(mainflasher)
		if err := mainflasher.DiagMain(args[0]); err != nil {
			log.Fatal(err)
		}
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Follow the board's UART console.",
	Run: func(cmd *cobra.Command, args []string) {
		assignFromViper(mainflasher)
		if err := mainflasher.MonitorMain(); err != nil {
			log.Fatal(err)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Flash once, then serve status and control over HTTP.",
	Run: func(cmd *cobra.Command, args []string) {
		assignFromViper(mainflasher)
		watchConfig()
		mainflasher.ServeMain()
	},
}

var mainflasher = &flasher.Flasher{}

func init() {
	viper.SetDefault("backend", "openfpgaloader")
	viper.SetDefault("bitdir", "./bit_file")
	viper.SetDefault("verify", "true")
	viper.SetDefault("progress", "true")
	viper.SetDefault("programseconds", "25")
	viper.SetDefault("device", "/dev/ttyUSB1")
	viper.SetDefault("baudrate", "115200")
	viper.SetDefault("muxnum", "1")
	viper.SetDefault("debug", "info")
	viper.SetDefault("api-service", "false")
	viper.SetDefault("api-listen", "0.0.0.0:8000")
	viper.SetDefault("uartio", []int{})
	viper.SetDefault("jtagio", []int{})
	viper.SetDefault("resetio", []int{})
	viper.SetDefault("slot", []int{})

	var flags *pflag.FlagSet = mainCmd.PersistentFlags()
	flags.String("cfg", defaultConfigFile, "config file path")
	flags.String("bitstream", "", "explicit bitstream path, skips the bitdir lookup")
	viper.BindPFlags(flags)

	mainCmd.AddCommand(versionCmd, examineCmd, diagCmd, monitorCmd, serveCmd)
	cobra.OnInitialize(initConfig)
}

// initConfig resolves the config file. The legacy prog_config.txt is
// plain KEY=VALUE, which viper reads as java properties; anything the
// file does not set falls back to the defaults above.
func initConfig() {
	fullcfgname := viper.GetString("cfg")
	log.Print("Config file: ", fullcfgname)
	_, statErr := os.Stat(fullcfgname)
	if fullcfgname != defaultConfigFile || statErr == nil {
		viper.SetConfigFile(fullcfgname)
		if filepath.Ext(fullcfgname) == ".txt" {
			viper.SetConfigType("properties")
		}
	} else {
		viper.SetConfigName("bitflash")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/opt/bitflash/etc")
	}
	if err := viper.ReadInConfig(); err != nil {
		println("No config file found. Using built-in defaults.")
	}
}

func watchConfig() {
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)
		assignFromViper(mainflasher)
		mainflasher.Reload()
	})
}

func assignFromViper(f *flasher.Flasher) {
	f.TargetDevice = viper.GetString("target_device")
	f.Backend = viper.GetString("backend")
	f.Part = viper.GetString("part")
	f.Board = viper.GetString("board")
	f.Frequency = viper.GetInt("frequency")
	f.BitDir = viper.GetString("bitdir")
	f.Bitstream = viper.GetString("bitstream")
	f.Verify = viper.GetBool("verify")
	f.VivadoBin = viper.GetString("vivado_bin")
	f.LoaderBin = viper.GetString("openfpgaloader_bin")
	f.HwServer = viper.GetString("hw_server")
	f.DevPath = viper.GetString("device")
	f.BaudRate = viper.GetUint("baudrate")
	f.MuxNums = viper.GetInt("muxnum")
	f.WebEnable = viper.GetBool("api-service")
	f.WebListen = viper.GetString("api-listen")
	f.LogLevel = viper.GetString("debug")
	f.Progress = viper.GetBool("progress")
	f.ProgramSeconds = viper.GetInt("programseconds")

	devices := viper.GetStringMap("devices")
	if raw, ok := devices[strings.ToLower(f.TargetDevice)]; ok {
		if err := flasher.ApplyProfile(f, raw); err != nil {
			log.Print("device profile ignored: ", err)
		}
	}
}

func main() {
	mainCmd.Execute()
}
