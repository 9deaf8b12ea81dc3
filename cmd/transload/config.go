package main

import (
	"fmt"
	"strings"

	"github.com/bitrise-io/go-transload/transload"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
	"github.com/spf13/viper"
)

const (
	keyURL             = "url"
	keyBucket          = "bucket"
	keyKey             = "key"
	keyBackend         = "backend"
	keyRegion          = "region"
	keyEndpoint        = "endpoint"
	keyPathStyle       = "path-style"
	keyInsecure        = "insecure"
	keyAccessKeyID     = "access-key-id"
	keySecretAccessKey = "secret-access-key"
	keySessionToken    = "session-token"
	keyACL             = "acl"
	keyContentType     = "content-type"
	keyCacheControl    = "cache-control"
	keyStorageClass    = "storage-class"
	keyMetadata        = "metadata"
	keyOption          = "option"
	keyPartSize        = "part-size"
	keyVerbose         = "verbose"
)

const (
	backendS3    = "s3"
	backendMinio = "minio"
)

// paramsFromConfig builds the transfer params. Options given by their own flag win over
// the same option passed through --option.
func paramsFromConfig(v *viper.Viper) (transload.Params, error) {
	partSize, err := partSizeFromConfig(v)
	if err != nil {
		return transload.Params{}, err
	}

	options, err := parseKeyValues(v.GetStringSlice(keyOption))
	if err != nil {
		return transload.Params{}, fmt.Errorf("parse %s: %w", keyOption, err)
	}
	uploadOptions := transload.UploadOptions{}
	folded := map[string]bool{}
	for k, val := range options {
		name := transload.CanonicalOptionName(k)
		if folded[strings.ToLower(name)] {
			return transload.Params{}, fmt.Errorf("parse %s: %s given more than once", keyOption, name)
		}
		folded[strings.ToLower(name)] = true
		uploadOptions[name] = val
	}

	for name, key := range map[string]string{
		transload.OptionACL:          keyACL,
		transload.OptionContentType:  keyContentType,
		transload.OptionCacheControl: keyCacheControl,
		transload.OptionStorageClass: keyStorageClass,
	} {
		if value := v.GetString(key); value != "" {
			uploadOptions[name] = value
		}
	}

	metadata, err := parseKeyValues(v.GetStringSlice(keyMetadata))
	if err != nil {
		return transload.Params{}, fmt.Errorf("parse %s: %w", keyMetadata, err)
	}
	if len(metadata) > 0 {
		uploadOptions[transload.OptionMetadata] = metadata
	}

	if len(uploadOptions) == 0 {
		uploadOptions = nil
	}

	return transload.Params{
		SourceURL:     v.GetString(keyURL),
		Bucket:        v.GetString(keyBucket),
		Key:           v.GetString(keyKey),
		UploadOptions: uploadOptions,
		Credentials:   credentialsFromConfig(v),
		Region:        v.GetString(keyRegion),
		Endpoint:      v.GetString(keyEndpoint),
		UsePathStyle:  v.GetBool(keyPathStyle),
		PartSize:      partSize,
	}, nil
}

// destinationFromConfig returns nil for the s3 backend, Transfer builds that one itself.
func destinationFromConfig(v *viper.Viper, logger log.Logger) (transload.Destination, error) {
	switch backend := strings.ToLower(v.GetString(keyBackend)); backend {
	case "", backendS3:
		return nil, nil
	case backendMinio:
		partSize, err := partSizeFromConfig(v)
		if err != nil {
			return nil, err
		}
		destination, err := transload.NewMinioDestination(transload.MinioParams{
			Endpoint:    v.GetString(keyEndpoint),
			Region:      v.GetString(keyRegion),
			Secure:      !v.GetBool(keyInsecure),
			Credentials: credentialsFromConfig(v),
			PartSize:    partSize,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create minio destination: %w", err)
		}
		return destination, nil
	default:
		return nil, fmt.Errorf("unknown backend %q, expected %s or %s", backend, backendS3, backendMinio)
	}
}

func credentialsFromConfig(v *viper.Viper) *transload.Credentials {
	accessKeyID := v.GetString(keyAccessKeyID)
	secretAccessKey := v.GetString(keySecretAccessKey)
	if accessKeyID == "" && secretAccessKey == "" {
		return nil
	}
	return &transload.Credentials{
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
		SessionToken:    v.GetString(keySessionToken),
	}
}

func partSizeFromConfig(v *viper.Viper) (int64, error) {
	value := v.GetString(keyPartSize)
	if value == "" {
		return 0, nil
	}
	size, err := units.RAMInBytes(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", keyPartSize, err)
	}
	return size, nil
}

// parseKeyValues accepts key=value items, an item may hold several pairs separated by commas.
func parseKeyValues(items []string) (map[string]string, error) {
	values := map[string]string{}
	for _, item := range items {
		for _, pair := range strings.Split(item, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			key, value, found := strings.Cut(pair, "=")
			if !found || key == "" {
				return nil, fmt.Errorf("invalid key=value pair: %q", pair)
			}
			values[key] = value
		}
	}
	return values, nil
}
