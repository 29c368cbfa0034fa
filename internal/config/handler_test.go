package config

import (
	"errors"
	"testing"
)

func TestCheckFilesValue(t *testing.T) {
	testCases := []struct {
		name    string
		key     string
		value   string
		wantErr error
	}{
		{name: "preview on", key: FilesKeyImagesPreview, value: "1"},
		{name: "preview off", key: FilesKeyImagesPreview, value: "0"},
		{name: "preview word", key: FilesKeyImagesPreview, value: "true", wantErr: ErrValueNotBoolean},
		{name: "shortlinks padded", key: FilesKeyUseShortlinks, value: " 1", wantErr: ErrValueNotBoolean},
		{name: "shortlinks empty", key: FilesKeyUseShortlinks, value: "", wantErr: ErrValueNotBoolean},
		{name: "quota zero", key: FilesKeyQuota, value: "0"},
		{name: "quota big", key: FilesKeyQuota, value: "1073741824"},
		{name: "quota negative", key: FilesKeyQuota, value: "-1", wantErr: ErrValueNotPositive},
		{name: "quota decimal", key: FilesKeyQuota, value: "1.5", wantErr: ErrValueNotPositive},
		{name: "quota empty", key: FilesKeyQuota, value: "", wantErr: ErrValueNotPositive},
		{name: "unknown key", key: "color", value: "1", wantErr: ErrUnknownFilesKey},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckFilesValue(tc.key, tc.value)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestApplyFilesValue(t *testing.T) {
	files := Files{}
	if err := ApplyFilesValue(&files, FilesKeyQuota, "2048"); err != nil {
		t.Fatalf("apply quota: %v", err)
	}
	if err := ApplyFilesValue(&files, FilesKeyUseShortlinks, "1"); err != nil {
		t.Fatalf("apply shortlinks: %v", err)
	}
	if files.Quota != 2048 || !files.UseShortlinks {
		t.Fatalf("unexpected files config: %+v", files)
	}

	if err := ApplyFilesValue(&files, FilesKeyQuota, "abc"); err == nil {
		t.Fatal("expected invalid quota to be rejected")
	}
	if files.Quota != 2048 {
		t.Fatalf("rejected value must not change quota, got %d", files.Quota)
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Server:     Server{Port: "3000"},
		Datasource: Datasource{URL: "data/test.db"},
		Log:        Log{Level: "info"},
		Auth:       Auth{Secret: "0123456789abcdef"},
		Storage:    Storage{DataRoot: "data/users"},
	}
	if err := Validate(&cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg.Server.Port = "abc"
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected invalid port to fail validation")
	}

	cfg.Server.Port = "3000"
	cfg.Files.Quota = -1
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected negative quota to fail validation")
	}
}
