package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ENV_PREFIX = "DEVICE_COMMUNICATION"

	GOOGLE_PROJECT_ID             = "Google_Project_Id"
	HTTP_SHUTDOWN_TIMEOUT         = "HTTP_Shutdown_Timeout"
	PROFILE                       = "Enable_Profile"
	COMMAND_ACK_TIMEOUT           = "Command_Ack_Timeout"
	CONFIG_REQUEST_RETRIES        = "Config_Request_Retries"
	CONFIG_RETRY_INITIAL_DELAY    = "Config_Retry_Initial_Delay"
	CONFIG_RETRY_MAX_DELAY        = "Config_Retry_Max_Delay"
	BATCH_RECONCILE_THRESHOLD     = "Batch_Reconcile_Threshold"
	RECONCILE_MAX_CONCURRENCY     = "Reconcile_Max_Concurrency"
	SUBSCRIBER_NUM_GOROUTINES     = "Subscriber_Num_Goroutines"
	SUBSCRIBER_MAX_OUTSTANDING    = "Subscriber_Max_Outstanding_Messages"
	DEVICE_DATABASE_IMPL          = "Device_Database_Impl"
	DEVICE_DATABASE_HOST          = "Device_Database_Host"
	DEVICE_DATABASE_PORT          = "Device_Database_Port"
	DEVICE_DATABASE_USER          = "Device_Database_User"
	DEVICE_DATABASE_PASSWORD      = "Device_Database_Password"
	DEVICE_DATABASE_NAME          = "Device_Database_Name"
	DEVICE_DATABASE_SSL_MODE      = "Device_Database_Ssl_Mode"
	DEVICE_DATABASE_SSL_ROOT_CERT = "Device_Database_Ssl_Root_Cert"
	DEVICE_DATABASE_QUERY_TIMEOUT = "Device_Database_Query_Timeout"
)

type Config struct {
	GoogleProjectId            string
	HttpShutdownTimeout        time.Duration
	Profile                    bool
	CommandAckTimeout          time.Duration
	ConfigRequestRetries       int
	ConfigRetryInitialDelay    time.Duration
	ConfigRetryMaxDelay        time.Duration
	BatchReconcileThreshold    int
	ReconcileMaxConcurrency    int
	SubscriberNumGoroutines    int
	SubscriberMaxOutstanding   int
	DeviceDatabaseImpl         string
	DeviceDatabaseHost         string
	DeviceDatabasePort         int
	DeviceDatabaseUser         string
	DeviceDatabasePassword     string
	DeviceDatabaseName         string
	DeviceDatabaseSslMode      string
	DeviceDatabaseSslRootCert  string
	DeviceDatabaseQueryTimeout time.Duration
}

func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", GOOGLE_PROJECT_ID, c.GoogleProjectId)
	fmt.Fprintf(&b, "%s: %s\n", HTTP_SHUTDOWN_TIMEOUT, c.HttpShutdownTimeout)
	fmt.Fprintf(&b, "%s: %t\n", PROFILE, c.Profile)
	fmt.Fprintf(&b, "%s: %s\n", COMMAND_ACK_TIMEOUT, c.CommandAckTimeout)
	fmt.Fprintf(&b, "%s: %d\n", CONFIG_REQUEST_RETRIES, c.ConfigRequestRetries)
	fmt.Fprintf(&b, "%s: %s\n", CONFIG_RETRY_INITIAL_DELAY, c.ConfigRetryInitialDelay)
	fmt.Fprintf(&b, "%s: %s\n", CONFIG_RETRY_MAX_DELAY, c.ConfigRetryMaxDelay)
	fmt.Fprintf(&b, "%s: %d\n", BATCH_RECONCILE_THRESHOLD, c.BatchReconcileThreshold)
	fmt.Fprintf(&b, "%s: %d\n", RECONCILE_MAX_CONCURRENCY, c.ReconcileMaxConcurrency)
	fmt.Fprintf(&b, "%s: %d\n", SUBSCRIBER_NUM_GOROUTINES, c.SubscriberNumGoroutines)
	fmt.Fprintf(&b, "%s: %d\n", SUBSCRIBER_MAX_OUTSTANDING, c.SubscriberMaxOutstanding)
	fmt.Fprintf(&b, "%s: %s\n", DEVICE_DATABASE_IMPL, c.DeviceDatabaseImpl)
	fmt.Fprintf(&b, "%s: %s\n", DEVICE_DATABASE_HOST, c.DeviceDatabaseHost)
	fmt.Fprintf(&b, "%s: %d\n", DEVICE_DATABASE_PORT, c.DeviceDatabasePort)
	fmt.Fprintf(&b, "%s: %s\n", DEVICE_DATABASE_NAME, c.DeviceDatabaseName)
	fmt.Fprintf(&b, "%s: %s\n", DEVICE_DATABASE_SSL_MODE, c.DeviceDatabaseSslMode)
	fmt.Fprintf(&b, "%s: %s\n", DEVICE_DATABASE_QUERY_TIMEOUT, c.DeviceDatabaseQueryTimeout)
	return b.String()
}

func GetConfig() *Config {
	options := viper.New()

	options.SetDefault(GOOGLE_PROJECT_ID, "")
	options.SetDefault(HTTP_SHUTDOWN_TIMEOUT, 2)
	options.SetDefault(PROFILE, false)
	options.SetDefault(COMMAND_ACK_TIMEOUT, 30)
	options.SetDefault(CONFIG_REQUEST_RETRIES, 3)
	options.SetDefault(CONFIG_RETRY_INITIAL_DELAY, 15)
	options.SetDefault(CONFIG_RETRY_MAX_DELAY, 240)
	options.SetDefault(BATCH_RECONCILE_THRESHOLD, 25)
	options.SetDefault(RECONCILE_MAX_CONCURRENCY, 8)
	options.SetDefault(SUBSCRIBER_NUM_GOROUTINES, 4)
	options.SetDefault(SUBSCRIBER_MAX_OUTSTANDING, 100)
	options.SetDefault(DEVICE_DATABASE_IMPL, "postgres")
	options.SetDefault(DEVICE_DATABASE_HOST, "localhost")
	options.SetDefault(DEVICE_DATABASE_PORT, 5432)
	options.SetDefault(DEVICE_DATABASE_USER, "devcomm")
	options.SetDefault(DEVICE_DATABASE_PASSWORD, "devcomm")
	options.SetDefault(DEVICE_DATABASE_NAME, "device-communication")
	options.SetDefault(DEVICE_DATABASE_SSL_MODE, "disable")
	options.SetDefault(DEVICE_DATABASE_SSL_ROOT_CERT, "db_ssl_root_cert.pem")
	options.SetDefault(DEVICE_DATABASE_QUERY_TIMEOUT, 5)

	options.SetEnvPrefix(ENV_PREFIX)
	options.AutomaticEnv()

	return &Config{
		GoogleProjectId:            options.GetString(GOOGLE_PROJECT_ID),
		HttpShutdownTimeout:        options.GetDuration(HTTP_SHUTDOWN_TIMEOUT) * time.Second,
		Profile:                    options.GetBool(PROFILE),
		CommandAckTimeout:          options.GetDuration(COMMAND_ACK_TIMEOUT) * time.Second,
		ConfigRequestRetries:       options.GetInt(CONFIG_REQUEST_RETRIES),
		ConfigRetryInitialDelay:    options.GetDuration(CONFIG_RETRY_INITIAL_DELAY) * time.Second,
		ConfigRetryMaxDelay:        options.GetDuration(CONFIG_RETRY_MAX_DELAY) * time.Second,
		BatchReconcileThreshold:    options.GetInt(BATCH_RECONCILE_THRESHOLD),
		ReconcileMaxConcurrency:    options.GetInt(RECONCILE_MAX_CONCURRENCY),
		SubscriberNumGoroutines:    options.GetInt(SUBSCRIBER_NUM_GOROUTINES),
		SubscriberMaxOutstanding:   options.GetInt(SUBSCRIBER_MAX_OUTSTANDING),
		DeviceDatabaseImpl:         options.GetString(DEVICE_DATABASE_IMPL),
		DeviceDatabaseHost:         options.GetString(DEVICE_DATABASE_HOST),
		DeviceDatabasePort:         options.GetInt(DEVICE_DATABASE_PORT),
		DeviceDatabaseUser:         options.GetString(DEVICE_DATABASE_USER),
		DeviceDatabasePassword:     options.GetString(DEVICE_DATABASE_PASSWORD),
		DeviceDatabaseName:         options.GetString(DEVICE_DATABASE_NAME),
		DeviceDatabaseSslMode:      options.GetString(DEVICE_DATABASE_SSL_MODE),
		DeviceDatabaseSslRootCert:  options.GetString(DEVICE_DATABASE_SSL_ROOT_CERT),
		DeviceDatabaseQueryTimeout: options.GetDuration(DEVICE_DATABASE_QUERY_TIMEOUT) * time.Second,
	}
}
