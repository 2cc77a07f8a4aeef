package kvdb

type Conf struct {
	Type string `json:"type" validate:"required,oneof=redis memory"`
	Host string `json:"host" validate:"required_if=Type redis"`
	Port int    `json:"port" validate:"required_if=Type redis,omitempty,min=1,max=65535"`
	PW   string `json:"pw"`
	DB   int    `json:"db"` // optional db number e.g. redis
}
