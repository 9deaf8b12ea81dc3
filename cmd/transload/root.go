package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bitrise-io/go-transload/transload"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const rootCmdUse = "transload"

func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:           rootCmdUse + " --url URL --bucket BUCKET --key KEY",
		Short:         "transload, stream an HTTP resource into an object storage bucket",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.NewLogger()
			logger.EnableDebugLog(v.GetBool(keyVerbose))

			params, err := paramsFromConfig(v)
			if err != nil {
				return err
			}
			destination, err := destinationFromConfig(v, logger)
			if err != nil {
				return err
			}
			params.Destination = destination

			result, err := transload.Transfer(cmd.Context(), params, logger)
			if err != nil {
				var transferErr *transload.TransferError
				if errors.As(err, &transferErr) && transferErr.StatusCode != 0 {
					logger.Errorf("Source responded with HTTP %d", transferErr.StatusCode)
				}
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(result)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/."+rootCmdUse+".yaml)")

	attachTransferOptions(cmd.Flags(), v)

	return cmd
}

func attachTransferOptions(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String(keyURL, "", "HTTP(S) URL of the resource to transfer")
	flags.String(keyBucket, "", "Destination bucket")
	flags.String(keyKey, "", "Destination object key")
	flags.String(keyBackend, backendS3, "Storage backend: s3 or minio")
	flags.String(keyRegion, "", "Storage region (default us-east-1)")
	flags.String(keyEndpoint, "", "Custom storage endpoint, host[:port] or URL")
	flags.Bool(keyPathStyle, false, "Use path style addressing (s3 backend)")
	flags.Bool(keyInsecure, false, "Connect without TLS (minio backend, host only endpoints)")
	flags.String(keyAccessKeyID, "", "Access key ID, the default credential chain is used when empty")
	flags.String(keySecretAccessKey, "", "Secret access key")
	flags.String(keySessionToken, "", "Session token")
	flags.String(keyACL, "", "Canned ACL of the stored object")
	flags.String(keyContentType, "", "Content-Type of the stored object (default from the source)")
	flags.String(keyCacheControl, "", "Cache-Control of the stored object")
	flags.String(keyStorageClass, "", "Storage class of the stored object")
	flags.StringSlice(keyMetadata, nil, "User metadata, key=value pairs")
	flags.StringSlice(keyOption, nil, "Additional upload options, Name=value pairs")
	flags.String(keyPartSize, "", "Multipart part size, e.g. 16MB")
	flags.BoolP(keyVerbose, "v", false, "Enable debug logs")

	if err := v.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("bind flags: %s", err))
	}
}

func initConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix(rootCmdUse)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(home)
	v.SetConfigType("yaml")
	v.SetConfigName("." + rootCmdUse)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}
