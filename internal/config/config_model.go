package config

import "time"

var Conf Config

type Config struct {
	Server     Server     `mapstructure:"server" json:"server" yaml:"server"`
	Datasource Datasource `mapstructure:"database" json:"database" yaml:"database"`
	Log        Log        `mapstructure:"log" json:"log" yaml:"log"`
	Auth       Auth       `mapstructure:"auth" json:"-" yaml:"auth"`
	Storage    Storage    `mapstructure:"storage" json:"storage" yaml:"storage"`
	Files      Files      `mapstructure:"files" json:"files" yaml:"files"`
	Shortlink  Shortlink  `mapstructure:"shortlink" json:"-" yaml:"shortlink"`
	Public     Public     `mapstructure:"public" json:"public" yaml:"public"`
}

type Server struct {
	Port string `mapstructure:"port" json:"port" yaml:"port" validate:"required,numeric"`
}

type Datasource struct {
	URL string `mapstructure:"url" json:"url" yaml:"url" validate:"required"`
}

type Log struct {
	Level string `mapstructure:"level" json:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
}

type Auth struct {
	Secret         string        `mapstructure:"secret" yaml:"secret" validate:"required,min=16"`
	Issuer         string        `mapstructure:"issuer" yaml:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_ttl" yaml:"access_ttl" validate:"gte=0"`
}

type Storage struct {
	// DataRoot 아래에 사용자별 <id>/files, <id>/trash 가 생성됩니다
	DataRoot string `mapstructure:"data_root" json:"dataRoot" yaml:"data_root" validate:"required"`
	IconsDir string `mapstructure:"icons_dir" json:"iconsDir" yaml:"icons_dir"`
}

// Files는 파일 모듈 설정입니다. 값 변경은 CheckFilesValue를 거칩니다.
type Files struct {
	ImagesPreview bool   `mapstructure:"images_preview" json:"imagesPreview" yaml:"images_preview"`
	UseShortlinks bool   `mapstructure:"use_shortlinks" json:"useShortlinks" yaml:"use_shortlinks"`
	Quota         int64  `mapstructure:"quota" json:"quota" yaml:"quota" validate:"gte=0"`
	PublicBaseURL string `mapstructure:"public_base_url" json:"publicBaseUrl" yaml:"public_base_url" validate:"omitempty,url"`
}

type Shortlink struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type Public struct {
	RatePerSecond float64 `mapstructure:"rate_per_second" json:"ratePerSecond" yaml:"rate_per_second" validate:"gte=0"`
	Burst         int     `mapstructure:"burst" json:"burst" yaml:"burst" validate:"gte=0"`
}
