package sqldb

type Conf struct {
	Type string `json:"type" validate:"required,oneof=mysql pgsql sqlite"`
	Host string `json:"host" validate:"required_unless=Type sqlite"`
	Port int    `json:"port" validate:"omitempty,min=1,max=65535"`
	User string `json:"user"`
	PW   string `json:"pw"`
	DB   string `json:"db" validate:"required"` // database name, or the file path for sqlite
	TZ   string `json:"tz"`                     // Connection Timezone
	DSN  string `json:"dsn"`                    // To Overwrite Default DSN

	MaxConns int `json:"max_conns" validate:"omitempty,min=1"`
}

func (c *Conf) MaxConnsOr(def int) int {
	if c.MaxConns > 0 {
		return c.MaxConns
	}
	return def
}
