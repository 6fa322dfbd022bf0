package main

import (
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-eyeguide/internal/config"
	"github.com/teslashibe/go-eyeguide/internal/log"
	"github.com/teslashibe/go-eyeguide/pkg/cloud"
	"github.com/teslashibe/go-eyeguide/pkg/detection"
	"github.com/teslashibe/go-eyeguide/pkg/navigation"
)

func newDetectorCmd(opts *rootOptions) *cobra.Command {
	var (
		addr  string
		model string
	)

	cmd := &cobra.Command{
		Use:   "detector",
		Short: "Serve object detection over HTTP for clients in cloud mode",
		Example: "  eyeguide detector --model models/yolov8s.onnx\n" +
			"  eyeguide detector --addr :8000",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				opts.cfg.Detector.Addr = addr
			}
			if cmd.Flags().Changed("model") {
				opts.cfg.Detection.ModelPath = model
			}
			cfg, err := opts.validated()
			if err != nil {
				return err
			}

			logger := log.Component("detector")

			// Without a model the server still answers, with 503 on /detect.
			var det detection.Detector
			if yolo, err := detection.NewYOLO(yoloConfig(cfg.Detection)); err != nil {
				logger.Error("model not loaded", "path", cfg.Detection.ModelPath, "error", err)
			} else {
				defer yolo.Close()
				det = yolo
			}

			srv := cloud.NewServer(cfg.Detector.Addr, det, navigation.ForLanguage(cfg.Speech.Language), logger)
			logger.Info("detector started", "addr", cfg.Detector.Addr, "model", cfg.Detection.ModelPath)
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :5000)")
	cmd.Flags().StringVar(&model, "model", "", "YOLO model path")
	return cmd
}

func yoloConfig(c config.DetectionConfig) detection.Config {
	d := detection.DefaultConfig()
	d.ModelPath = c.ModelPath
	d.ConfigPath = c.ConfigPath
	d.LabelsPath = c.LabelsPath
	d.ConfidenceThresh = float32(c.Confidence)
	d.NMSThresh = float32(c.NMS)
	d.InputSize = c.InputSize
	return d
}
