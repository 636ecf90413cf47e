package main

import (
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func checkError(e error) {
	if e != nil {
		log.Output(2, e.Error())
		os.Exit(1)
	}
}

var (
	plain   bool
	noImage bool
	colored bool
	braille bool
	width   int
	split   string
)

func init() {
	for _, cmd := range []*cobra.Command{&raw, &dataset} {
		cmd.Flags().BoolVar(&plain, "plain", false, "print steps and wait for enter instead of the interactive viewer")
		cmd.Flags().BoolVar(&noImage, "no_image", false, "do not draw the camera frames")
		cmd.Flags().BoolVar(&colored, "color", true, "draw frames in color")
		cmd.Flags().BoolVar(&braille, "braille", false, "draw frames with braille characters")
		cmd.Flags().IntVar(&width, "width", 80, "width of the drawn frames in plain mode")
	}
	dataset.Flags().StringVar(&split, "split", "train", "split to view")
}

func view(eps episodes) error {
	var render renderer
	if !noImage {
		render = newASCIIRenderer(colored, braille)
	}
	if plain {
		return newPlainViewer(eps, os.Stdin, os.Stdout, render, width).Run()
	}
	_, err := tea.NewProgram(newModel(eps, render), tea.WithAltScreen()).Run()
	return err
}

var raw = cobra.Command{
	Use:   "raw DIR_OR_FILE",
	Short: "step through raw episode files",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eps, err := newRawEpisodes(args[0])
		checkError(err)
		checkError(view(eps))
	},
}

var dataset = cobra.Command{
	Use:   "dataset DATASET_DIR",
	Short: "step through the episodes of a built dataset split",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eps, err := newDatasetEpisodes(args[0], split)
		checkError(err)
		checkError(view(eps))
	},
}

func main() {
	root := cobra.Command{
		Use:   "viz",
		Short: "view grid clamp episodes",
	}
	root.AddCommand(&raw, &dataset)
	checkError(root.Execute())
}
