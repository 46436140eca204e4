package utils

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"

	"gorm.io/datatypes"
)

// CalculateMD5 计算字节切片的 MD5, 返回十六进制字符串
func CalculateMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// ConvertArrayToJSON 把字符串数组转换为 JSON 列, nil 或空数组写为 []
func ConvertArrayToJSON(arr []string) datatypes.JSON {
	if len(arr) == 0 {
		return datatypes.JSON("[]")
	}
	b, err := json.Marshal(arr)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(b)
}

// ConvertToJSON 把任意值序列化为 JSON 列, 失败时返回 null
func ConvertToJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}
